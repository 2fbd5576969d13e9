package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jason-s-yu/dicetable/internal/models"
	"github.com/spf13/cobra"
)

// output formats results as plain lines or indented JSON.
type output struct {
	w      io.Writer
	format string
}

func newOutput(cmd *cobra.Command, format string) *output {
	return &output{w: cmd.OutOrStdout(), format: format}
}

// Print outputs data in the configured format.
func (o *output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
		return
	}
	switch v := data.(type) {
	case *models.User:
		fmt.Fprintf(o.w, "%s  %s  balance=%d admin=%t\n", v.ID, v.Username, v.Balance, v.IsAdmin)
	case []models.BalanceTransaction:
		if len(v) == 0 {
			fmt.Fprintln(o.w, "no transactions")
			return
		}
		for _, t := range v {
			fmt.Fprintf(o.w, "%s  %-7s %+8d  -> %-8d %s\n",
				t.CreatedAt.Format("2006-01-02 15:04:05"), t.Kind, t.Amount, t.BalanceAfter, t.Reference)
		}
	default:
		o.printJSON(data)
	}
}

// Message outputs a simple message.
func (o *output) Message(msg string) {
	if o.format == "json" {
		o.printJSON(map[string]string{"message": msg})
		return
	}
	fmt.Fprintln(o.w, msg)
}

func (o *output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}
