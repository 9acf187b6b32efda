package logger

// Color :
// Defines the colors that can be produced as valid standard
// output display.
type Color int

const (
	Black Color = iota
	Red
	Green
	Yellow
	Blue
	Magenta
	Cyan
	White
	Grey
)

// Code :
// Provides the terminal escape sequence switching the display
// to this color.
func (c Color) Code() string {
	code := [...]string{
		"30",
		"31",
		"32",
		"33",
		"34",
		"35",
		"36",
		"37",
		"90",
	}[c]
	return "\033[1;" + code + "m"
}

// NoOp :
// Resets the color display of the standard output to the
// default color.
func NoOp() string {
	return "\033[0m"
}

// format :
// Used to wrap the input message with the escape sequences
// needed to display it with the specified color, optionally
// surrounding it with brackets.
func format(msg string, c Color, addBracket bool) string {
	fMsg := ""
	if addBracket {
		fMsg += "["
	}
	fMsg += msg
	if addBracket {
		fMsg += "]"
	}
	return c.Code() + fMsg + NoOp()
}

// FormatWithBrackets :
// Wrapper around the `format` method assuming the user wants
// to add some brackets around the message.
func FormatWithBrackets(msg string, c Color) string {
	return format(msg, c, true)
}

// FormatWithNoBrackets :
// Similar to `FormatWithBrackets` but does not include some
// brackets around the message.
func FormatWithNoBrackets(msg string, c Color) string {
	return format(msg, c, false)
}
