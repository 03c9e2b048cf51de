package commands

import "strings"

// singleDashFlags are the launch flags other tools pass with a single dash.
var singleDashFlags = map[string]string{
	"game":  "game",
	"trace": "trace",
	"u":     "uninstall",
}

// NormalizeArgs rewrites the single dash launch flags (`-game X`, `-game=X`, `-trace`,
// `-u=X`, `-u X`) into their long form. Everything after `--` is kept untouched.
func NormalizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i, arg := range args {
		if arg == "--" {
			return append(out, args[i:]...)
		}

		if !strings.HasPrefix(arg, "-") || strings.HasPrefix(arg, "--") {
			out = append(out, arg)
			continue
		}

		name, value, hasValue := strings.Cut(arg[1:], "=")
		long, ok := singleDashFlags[strings.ToLower(name)]
		if !ok {
			out = append(out, arg)
			continue
		}

		if hasValue {
			out = append(out, "--"+long+"="+value)
			continue
		}
		out = append(out, "--"+long)
	}

	return out
}

// WithDefaultCommand prepends the default command when the args don't name any of the
// known commands, so launch flags like `--game` reach it.
func WithDefaultCommand(args []string, known []string, def string) []string {
	names := map[string]bool{"help": true}
	for _, k := range known {
		names[k] = true
	}

	for _, arg := range args {
		if arg == "--" {
			break
		}
		if names[arg] || arg == "--help" || arg == "-h" || arg == "--version" {
			return args
		}
	}

	return append([]string{def}, args...)
}
