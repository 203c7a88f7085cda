// Package flagx contains helpers for parsing a subset of the command line
// without claiming flags that belong to other components.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs keeps only the flags named in allow, together with their
// values, and drops everything else. A value may ride along as the next
// argument ("-c conf.json") or inside the flag itself ("--config=conf.json").
func FilterArgs(args []string, allow []string) []string {
	keep := make([]string, 0, len(args))

	skipNext := false
	for i, arg := range args {
		if skipNext {
			skipNext = false
			continue
		}

		name, _, inline := strings.Cut(arg, "=")
		if !allowedFlag(name, allow) {
			continue
		}
		keep = append(keep, arg)
		if inline {
			continue
		}
		// A following argument that is not itself a flag is this flag's value.
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			keep = append(keep, args[i+1])
			skipNext = true
		}
	}
	return keep
}

func allowedFlag(name string, allow []string) bool {
	if !strings.HasPrefix(name, "-") {
		return false
	}
	for _, f := range allow {
		if f == name {
			return true
		}
	}
	return false
}

// JsonConfigFlags extracts the config file path given via -c or -config,
// ignoring every other argument. Empty string when neither is present.
func JsonConfigFlags() string {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	long := fs.String("config", "", "Path to config file")
	short := fs.String("c", "", "Path to config file (short)")
	_ = fs.Parse(FilterArgs(os.Args[1:], []string{"-c", "-config"}))

	if *long != "" {
		return *long
	}
	return *short
}
