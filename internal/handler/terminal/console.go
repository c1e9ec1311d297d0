package terminal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/peterh/liner"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/zhouzirui/z-tavern/chatcli/internal/config"
)

const (
	errorLabel  = "Error"
	systemLabel = "System"
)

type lineReader interface {
	ReadLine() (string, error)
	Close() error
}

// Console is the terminal side of a chat session: labelled output, line input and
// screen clearing.
type Console struct {
	in       lineReader
	out      io.Writer
	clearCmd []string

	userName      string
	assistantName string

	userStyle      lipgloss.Style
	assistantStyle lipgloss.Style
	errorStyle     lipgloss.Style
	systemStyle    lipgloss.Style
}

// New creates a console reading from in and writing to out. When in is an interactive
// terminal, input goes through liner for line editing and history.
func New(in io.Reader, out io.Writer, cfg config.SessionConfig) *Console {
	renderer := lipgloss.NewRenderer(out)

	return &Console{
		in:            newLineReader(in),
		out:           out,
		clearCmd:      clearCommand(runtime.GOOS),
		userName:      cfg.UserName,
		assistantName: cfg.AssistantName,

		userStyle:      renderer.NewStyle().Foreground(lipgloss.Color("6")).Bold(true),
		assistantStyle: renderer.NewStyle().Foreground(lipgloss.Color("5")).Bold(true),
		errorStyle:     renderer.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		systemStyle:    renderer.NewStyle().Foreground(lipgloss.Color("3")),
	}
}

// Out is the writer replies are rendered to.
func (c *Console) Out() io.Writer {
	return c.out
}

// ReadInput prints the user label and reads one line. Interrupts and end of input are
// reported as io.EOF.
func (c *Console) ReadInput() (string, error) {
	fmt.Fprintln(c.out, label(c.userStyle, c.userName))
	return c.in.ReadLine()
}

// BeginReply prints the assistant label ahead of a reply.
func (c *Console) BeginReply() {
	fmt.Fprintf(c.out, "\n%s\n", label(c.assistantStyle, c.assistantName))
}

// EndReply separates a reply from the next prompt.
func (c *Console) EndReply() {
	fmt.Fprintln(c.out)
}

// Notice prints a system diagnostic line.
func (c *Console) Notice(format string, args ...any) {
	fmt.Fprintf(c.out, "%s %s\n", label(c.systemStyle, systemLabel), fmt.Sprintf(format, args...))
}

// Error prints an error diagnostic line.
func (c *Console) Error(format string, args ...any) {
	fmt.Fprintf(c.out, "%s %s\n", label(c.errorStyle, errorLabel), fmt.Sprintf(format, args...))
}

// PrintProgramInfo shows the model settings for the session.
func (c *Console) PrintProgramInfo(cfg config.SessionConfig) {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "Language Model:")
	fmt.Fprintf(c.out, "- Model:             %s\n", cfg.Model)
	fmt.Fprintf(c.out, "- Max Tokens:        %d\n", cfg.MaxTokens)
	fmt.Fprintf(c.out, "- Temperature:       %g\n", cfg.Temperature)
	fmt.Fprintf(c.out, "- Streaming Enabled: %t\n", cfg.Stream)
	fmt.Fprintln(c.out)
}

// Clear clears the terminal with the platform clear command, falling back to the ANSI
// clear-screen sequence. Clearing never fails the session.
func (c *Console) Clear() {
	if len(c.clearCmd) > 0 {
		cmd := exec.Command(c.clearCmd[0], c.clearCmd[1:]...)
		cmd.Stdout = c.out
		err := cmd.Run()
		if err == nil {
			return
		}
		log.Debug().Err(err).Strs("command", c.clearCmd).Msg("clear command failed, using escape sequence")
	}

	termenv.NewOutput(c.out).ClearScreen()
}

// Width returns the terminal width, or 0 when out is not a terminal.
func (c *Console) Width() int {
	f, ok := c.out.(*os.File)
	if !ok || !isatty.IsTerminal(f.Fd()) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

// Close releases the input reader and restores the terminal mode.
func (c *Console) Close() error {
	return c.in.Close()
}

func label(style lipgloss.Style, name string) string {
	return style.Render("[" + name + "]")
}

func clearCommand(goos string) []string {
	if goos == "windows" {
		return []string{"cmd", "/c", "cls"}
	}
	return []string{"clear"}
}

func newLineReader(in io.Reader) lineReader {
	if f, ok := in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		state := liner.NewLiner()
		state.SetCtrlCAborts(true)
		return &linerReader{state: state}
	}
	return &bufferedReader{reader: bufio.NewReader(in)}
}

type linerReader struct {
	state *liner.State
}

func (r *linerReader) ReadLine() (string, error) {
	line, err := r.state.Prompt("")
	if err == liner.ErrPromptAborted {
		return "", io.EOF
	}
	if err != nil {
		return "", err
	}
	if line != "" {
		r.state.AppendHistory(line)
	}
	return line, nil
}

func (r *linerReader) Close() error {
	return r.state.Close()
}

// bufferedReader reads piped input line by line with no length limit. A final line
// without a trailing newline is still returned before io.EOF.
type bufferedReader struct {
	reader *bufio.Reader
}

func (r *bufferedReader) ReadLine() (string, error) {
	line, err := r.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}

func (r *bufferedReader) Close() error {
	return nil
}
