package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"pidcheck/pkg/domain"
)

// Marshal encodes r as indented JSON. Equal reports encode to equal bytes.
func Marshal(r domain.Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteJSON writes r as indented JSON followed by a newline.
func WriteJSON(w io.Writer, r domain.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// WriteText writes a human-readable summary: status, counts, every issue and
// every constraint that did not pass.
func WriteText(w io.Writer, r domain.Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "schematic %s: %s\n", displayID(r.SchematicID), strings.ToUpper(string(r.Status)))
	fmt.Fprintf(&b, "constraints: %d pass, %d fail, %d unresolvable\n",
		r.Summary.Pass, r.Summary.Fail, r.Summary.Unresolvable)

	if len(r.ConnectivityIssues) > 0 {
		b.WriteString("\nconnectivity:\n")
		for _, issue := range r.ConnectivityIssues {
			fmt.Fprintf(&b, "  [%s] %s\n", issue.Kind, issue.Message)
		}
	}
	if len(r.ParameterIssues) > 0 {
		b.WriteString("\nparameters:\n")
		for _, issue := range r.ParameterIssues {
			fmt.Fprintf(&b, "  [%s] %s\n", issue.Kind, issue.Message)
		}
	}
	var shown bool
	for _, res := range r.ConstraintResults {
		if res.Verdict == domain.VerdictPass {
			continue
		}
		if !shown {
			b.WriteString("\nconstraints:\n")
			shown = true
		}
		fmt.Fprintf(&b, "  %-12s %s[%d] %s\n", res.Verdict, res.InstanceID, res.Index, res.Expression)
		if res.Reason != "" {
			fmt.Fprintf(&b, "               %s\n", res.Reason)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func displayID(id string) string {
	if id == "" {
		return "(unsaved)"
	}
	return id
}
