package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/san-kum/qlab/internal/concept"
	"github.com/san-kum/qlab/internal/session"
)

// Transcript is a point-in-time copy of a lab session.
type Transcript struct {
	Exported time.Time       `json:"exported"`
	Topic    concept.ID      `json:"topic"`
	Measured bool            `json:"measured"`
	Outcome  string          `json:"outcome,omitempty"`
	Entries  []session.Entry `json:"entries"`
}

// Snapshot copies the controller's current state.
func Snapshot(c *session.Controller, outcome string) Transcript {
	sel := c.Selection()
	return Transcript{
		Exported: time.Now(),
		Topic:    sel.Topic,
		Measured: sel.Measured,
		Outcome:  outcome,
		Entries:  c.Transcript(),
	}
}

func TranscriptJSON(w io.Writer, t Transcript) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(t)
}

func TranscriptMarkdown(w io.Writer, t Transcript) error {
	var b strings.Builder
	b.WriteString("# 量子通信实验室\n\n")
	b.WriteString(fmt.Sprintf("- exported: %s\n", t.Exported.Format(time.RFC3339)))
	if d, ok := concept.Get(t.Topic); ok {
		b.WriteString(fmt.Sprintf("- topic: %s %s\n", d.Icon, d.Title))
	} else {
		b.WriteString("- topic: none\n")
	}
	if t.Measured {
		b.WriteString("- measured: yes")
		if t.Outcome != "" {
			b.WriteString(" (" + t.Outcome + ")")
		}
		b.WriteString("\n")
	}

	for _, e := range t.Entries {
		speaker := "AI"
		if e.Speaker == session.User {
			speaker = "You"
		}
		b.WriteString(fmt.Sprintf("\n## %s\n\n%s\n", speaker, strings.TrimSpace(e.Text)))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteFile creates path and fills it with write.
func WriteFile(path string, write func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
