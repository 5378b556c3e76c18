package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tbourn/lead-qualifier/internal/domain"
	"github.com/tbourn/lead-qualifier/internal/services"
)

var extractUserOnly bool

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Extract and score a lead profile from a transcript",
	Long: `Reads a transcript of "role: content" lines (user, assistant or system)
from a file or stdin and prints the extracted profile and its score as JSON.
Lines without a role prefix continue the previous turn.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		msgs, err := parseTranscript(in)
		if err != nil {
			return err
		}
		out, err := extractReport(cmd.Context(), msgs, extractUserOnly)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	extractCmd.Flags().BoolVar(&extractUserOnly, "user-only", false, "ignore assistant turns")
	rootCmd.AddCommand(extractCmd)
}

type extractOutput struct {
	Profile       domain.LeadProfile     `json:"profile"`
	Qualification services.Qualification `json:"qualification"`
}

func extractReport(ctx context.Context, msgs []domain.Message, userOnly bool) (extractOutput, error) {
	p, err := services.PatternExtractor{UserTurnsOnly: userOnly}.Extract(ctx, "", msgs)
	if err != nil {
		return extractOutput{}, err
	}
	return extractOutput{Profile: p, Qualification: services.Score(p)}, nil
}

func parseTranscript(r io.Reader) ([]domain.Message, error) {
	var msgs []domain.Message
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if role, content, ok := splitTurn(line); ok {
			msgs = append(msgs, domain.Message{Role: role, Content: content})
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if len(msgs) == 0 {
			return nil, fmt.Errorf("transcript must start with a role prefix: %q", line)
		}
		msgs[len(msgs)-1].Content += "\n" + line
	}
	return msgs, sc.Err()
}

func splitTurn(line string) (role, content string, ok bool) {
	head, rest, found := strings.Cut(line, ":")
	if !found {
		return "", "", false
	}
	switch r := strings.ToLower(strings.TrimSpace(head)); r {
	case domain.RoleUser, domain.RoleAssistant, domain.RoleSystem:
		return r, strings.TrimSpace(rest), true
	}
	return "", "", false
}
