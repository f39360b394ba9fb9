package config

import "fmt"

// rewriteOrAction is one -r/-a occurrence, tagged with which flag
// produced it; its position on the command line is its index in the
// shared slice.
type rewriteOrAction struct {
	isAction bool
	spec     string
}

// orderedFlag is a flag.Value that appends to a slice shared across
// both the -r and -a registrations, so Parse can later replay the two
// kinds of option in the exact order they appeared on the command
// line instead of processing all of one kind before the other.
type orderedFlag struct {
	isAction bool
	opts     *[]rewriteOrAction
}

func (f *orderedFlag) String() string {
	if f == nil || f.opts == nil {
		return ""
	}
	return fmt.Sprint(*f.opts)
}

func (f *orderedFlag) Set(v string) error {
	*f.opts = append(*f.opts, rewriteOrAction{isAction: f.isAction, spec: v})
	return nil
}
