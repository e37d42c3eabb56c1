// Package searchcmder provides the search command, which queries a running
// folio API server.
package searchcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/folio/cmd/folio/stack"
	"github.com/papercomputeco/folio/pkg/config"
	"github.com/papercomputeco/folio/pkg/search"
	"github.com/papercomputeco/folio/pkg/utils"
)

var (
	rankStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	previewStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	matchedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const previewLen = 100

// Params are the query parameters of GET /v1/search.
type Params struct {
	Query      string
	Course     string
	Type       string
	UploadedBy string
	Mode       string
	TopK       int
	GroupCap   int
}

// Response is the body of a search response. Results is decoded by Grouped
// or Flat depending on Mode.
type Response struct {
	Query   string          `json:"query"`
	Mode    string          `json:"mode"`
	Count   int             `json:"count"`
	Results json.RawMessage `json:"results"`
}

// Grouped decodes the results of a grouped search.
func (r *Response) Grouped() ([]search.GroupedResult, error) {
	var results []search.GroupedResult
	if err := json.Unmarshal(r.Results, &results); err != nil {
		return nil, fmt.Errorf("failed to parse grouped results: %w", err)
	}
	return results, nil
}

// Flat decodes the results of a flat search.
func (r *Response) Flat() ([]search.FlatResult, error) {
	var results []search.FlatResult
	if err := json.Unmarshal(r.Results, &results); err != nil {
		return nil, fmt.Errorf("failed to parse flat results: %w", err)
	}
	return results, nil
}

type searchCommander struct {
	params   Params
	raw      bool
	settings stack.Settings
	out      io.Writer
}

const searchLongDesc string = `Search course materials via the folio API.

Requires a running folio API server (folio serve). In grouped mode each
result is a document with the passages that matched; in flat mode each
result is a single passage with its similarity score.

Use --json to print the raw response, for piping into other tools.

Examples:
  folio search "how does recursion terminate"
  folio search "base case" --course CS101 --type lecture
  folio search "big-O of merge sort" --mode flat --top-k 10
  folio search "linked lists" --api-target http://localhost:8081 --json`

const searchShortDesc string = "Search course materials"

var searchFlags = []string{
	config.FlagAPITarget,
	config.FlagSearchMode,
	config.FlagTopK,
	config.FlagGroupCap,
}

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.settings, err = stack.Load(cmd, searchFlags...)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.params.Query = args[0]
			cmder.params.Mode = cmder.settings.SearchMode
			cmder.params.TopK = cmder.settings.TopK
			cmder.params.GroupCap = cmder.settings.GroupCap
			cmder.out = cmd.OutOrStdout()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return cmder.run(ctx)
		},
	}

	var (
		apiTarget, mode string
		topK, groupCap  uint
	)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &apiTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagSearchMode, &mode)
	config.AddUintFlag(cmd, config.Flags, config.FlagTopK, &topK)
	config.AddUintFlag(cmd, config.Flags, config.FlagGroupCap, &groupCap)

	cmd.Flags().StringVar(&cmder.params.Course, "course", "", "Only search documents of this course")
	cmd.Flags().StringVar(&cmder.params.Type, "type", "", "Only search documents of this type")
	cmd.Flags().StringVar(&cmder.params.UploadedBy, "uploaded-by", "", "Only search documents uploaded by this user")
	cmd.Flags().BoolVar(&cmder.raw, "json", false, "Print the raw JSON response")

	return cmd
}

func (c *searchCommander) run(ctx context.Context) error {
	resp, body, err := SearchAPI(ctx, c.settings.APITarget, c.params)
	if err != nil {
		return err
	}

	if c.raw {
		_, err := c.out.Write(append(body, '\n'))
		return err
	}

	return Render(c.out, resp)
}

// SearchAPI runs a search against the folio API at apiTarget and returns
// the decoded response with its raw body.
func SearchAPI(ctx context.Context, apiTarget string, p Params) (*Response, []byte, error) {
	base, err := url.Parse(apiTarget)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid API target %q: %w", apiTarget, err)
	}
	searchURL := base.JoinPath("v1", "search")

	q := searchURL.Query()
	q.Set("query", p.Query)
	setIfNotEmpty(q, "course", p.Course)
	setIfNotEmpty(q, "type", p.Type)
	setIfNotEmpty(q, "uploaded_by", p.UploadedBy)
	setIfNotEmpty(q, "mode", p.Mode)
	if p.TopK > 0 {
		q.Set("top_k", strconv.Itoa(p.TopK))
	}
	if p.GroupCap > 0 {
		q.Set("group_cap", strconv.Itoa(p.GroupCap))
	}
	searchURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL.String(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("creating search request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to folio API at %s: %w", apiTarget, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return nil, nil, fmt.Errorf("search request failed (HTTP %d): %s", resp.StatusCode, apiErr.Error)
		}
		return nil, nil, fmt.Errorf("search request failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var output Response
	if err := json.Unmarshal(body, &output); err != nil {
		return nil, nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	return &output, body, nil
}

// Render writes a search response for people to read.
func Render(w io.Writer, resp *Response) error {
	if resp.Count == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}

	fmt.Fprintf(w, "\n%s %s %s\n\n",
		headerStyle.Render("Search results for:"),
		idStyle.Render(fmt.Sprintf("%q", resp.Query)),
		dimStyle.Render(fmt.Sprintf("(%s, %d)", resp.Mode, resp.Count)),
	)

	if resp.Mode == search.ModeFlat {
		results, err := resp.Flat()
		if err != nil {
			return err
		}
		for i, r := range results {
			fmt.Fprintf(w, "  %s  %s  %s\n",
				rankStyle.Render(fmt.Sprintf("#%d", i+1)),
				scoreStyle.Render(fmt.Sprintf("score: %.4f", r.Score)),
				idStyle.Render(r.DocumentID),
			)
			fmt.Fprintf(w, "      %s\n\n", previewStyle.Render(preview(r.Text)))
		}
		return nil
	}

	results, err := resp.Grouped()
	if err != nil {
		return err
	}
	for i, r := range results {
		doc := r.Document
		fmt.Fprintf(w, "  %s  %s  %s  %s\n",
			rankStyle.Render(fmt.Sprintf("#%d", i+1)),
			titleStyle.Render(doc.Title),
			dimStyle.Render(doc.CourseCode+" · "+doc.Type),
			idStyle.Render(doc.ID),
		)
		for _, text := range r.MatchedTexts {
			fmt.Fprintf(w, "      %s %s\n", matchedStyle.Render(">"), previewStyle.Render(preview(text)))
		}
		fmt.Fprintln(w)
	}

	return nil
}

func preview(text string) string {
	return utils.Truncate(strings.Join(strings.Fields(text), " "), previewLen)
}

func setIfNotEmpty(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}
