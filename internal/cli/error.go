package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/norjs/nopg/internal/nerr"
)

// FormatError formats an error for CLI display in Cargo/rustc style.
// If the error is a *nerr.Error, it renders the code, structured context,
// help suggestion, and cause. Otherwise it formats as a generic error.
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var nerror *nerr.Error
	if errors.As(err, &nerror) {
		return formatCodedError(nerror)
	}
	return formatGenericError(err)
}

// formatCodedError renders a *nerr.Error:
//
//	error[E1001]: unknown column key "$naame" for document
//	   | key: $naame
//	   | table: documents
//	help: did you mean '$name'?
func formatCodedError(err *nerr.Error) string {
	var b strings.Builder

	b.WriteString(Error("error"))
	b.WriteString("[")
	b.WriteString(Code(string(err.GetCode())))
	b.WriteString("]: ")
	b.WriteString(err.GetMessage())
	b.WriteString("\n")

	ctx := err.GetContext()
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		if k == "help" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if len(keys) > 0 {
		b.WriteString("   ")
		b.WriteString(Pipe())
		b.WriteString("\n")
		for _, k := range keys {
			b.WriteString("   ")
			b.WriteString(Pipe())
			b.WriteString(" ")
			b.WriteString(Dim(k))
			b.WriteString(": ")
			fmt.Fprintf(&b, "%v", ctx[k])
			b.WriteString("\n")
		}
	}

	if help := err.Help(); help != "" {
		b.WriteString(Help("help"))
		b.WriteString(": ")
		b.WriteString(help)
		b.WriteString("\n")
	}

	if cause := err.Unwrap(); cause != nil {
		b.WriteString(Note("cause"))
		b.WriteString(": ")
		b.WriteString(cause.Error())
		b.WriteString("\n")
	}

	return b.String()
}

// formatGenericError formats a non-coded error.
func formatGenericError(err error) string {
	var b strings.Builder
	b.WriteString(Error("error"))
	b.WriteString(": ")
	b.WriteString(err.Error())
	b.WriteString("\n")
	return b.String()
}

// FormatNote formats a note message.
func FormatNote(msg string) string {
	return Note("note") + ": " + msg + "\n"
}

// FormatHelp formats a help message.
func FormatHelp(msg string) string {
	return Help("help") + ": " + msg + "\n"
}

// FormatSuccess formats a success message.
func FormatSuccess(msg string) string {
	return Success("success") + ": " + msg + "\n"
}

// FormatWarning formats a warning message.
func FormatWarning(msg string) string {
	return Warning("warning") + ": " + msg + "\n"
}
