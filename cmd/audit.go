package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/siteaudit/internal/model"
	"github.com/sells-group/siteaudit/internal/pipeline"
)

var (
	auditLang     string
	auditModelTag string
	auditFresh    bool
	auditFile     string
	auditWorkers  int
	auditJSON     bool
)

var auditCmd = &cobra.Command{
	Use:   "audit [url]",
	Short: "Audit one page, or a file of URLs with --file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if auditFile == "" && len(args) == 0 {
			return eris.New("either a URL argument or --file is required")
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if auditFile != "" {
			return runBatchAudit(cmd, env)
		}
		return runSingleAudit(cmd, env, args[0])
	},
}

func runSingleAudit(cmd *cobra.Command, env *auditEnv, url string) error {
	res, err := env.Auditor.Audit(cmd.Context(), pipeline.Request{
		URL:              url,
		Language:         auditLang,
		RequiredModelTag: auditModelTag,
		Fresh:            auditFresh,
	})
	if err != nil {
		return err
	}
	return printResult(cmd, url, res)
}

func runBatchAudit(cmd *cobra.Command, env *auditEnv) error {
	urls, err := readURLFile(auditFile)
	if err != nil {
		return err
	}
	zap.L().Info("starting batch audit",
		zap.Int("urls", len(urls)),
		zap.Int("workers", auditWorkers))

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(auditWorkers)

	results := make([]*pipeline.Result, len(urls))
	for i, url := range urls {
		g.Go(func() error {
			res, err := env.Auditor.Audit(ctx, pipeline.Request{
				URL:              url,
				Language:         auditLang,
				RequiredModelTag: auditModelTag,
				Fresh:            auditFresh,
			})
			if err != nil {
				// One bad URL does not sink the batch.
				zap.L().Error("audit failed", zap.String("url", url), zap.Error(err))
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, res := range results {
		if res == nil {
			continue
		}
		if err := printResult(cmd, urls[i], res); err != nil {
			return err
		}
	}
	return nil
}

func readURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open url file")
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "read url file")
	}
	if len(urls) == 0 {
		return nil, eris.New("url file is empty")
	}
	return urls, nil
}

func printResult(cmd *cobra.Command, url string, res *pipeline.Result) error {
	if auditJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			URL      string             `json:"url"`
			Cached   bool               `json:"cached"`
			ModelTag string             `json:"model_tag"`
			Report   *model.AuditReport `json:"report"`
		}{url, res.Cached, res.ModelTag, res.Report})
	}

	out := cmd.OutOrStdout()
	source := "fresh"
	if res.Cached {
		source = "cached"
	}
	fmt.Fprintf(out, "%s\n  geo score: %d (%s, %s tier)\n", url, res.Report.GeoScore, source, res.ModelTag)
	fmt.Fprintf(out, "  clarity %d | structure %d | answers %d | trust %d\n",
		res.Report.Scores.ContentClarity, res.Report.Scores.StructuredData,
		res.Report.Scores.AnswerReadiness, res.Report.Scores.TrustAuthority)
	if res.Report.Summary != "" {
		fmt.Fprintf(out, "  %s\n", res.Report.Summary)
	}
	for _, issue := range res.Report.Issues {
		fmt.Fprintf(out, "  [%s] %s: %s\n", issue.Impact, issue.Title, issue.Suggestion)
	}
	return nil
}

func init() {
	auditCmd.Flags().StringVar(&auditLang, "lang", "en", "report language (ISO code)")
	auditCmd.Flags().StringVar(&auditModelTag, "model", "", "require a model tier (free or pro)")
	auditCmd.Flags().BoolVar(&auditFresh, "fresh", false, "skip the cache and force a new scoring run")
	auditCmd.Flags().StringVar(&auditFile, "file", "", "audit every URL in this file (one per line)")
	auditCmd.Flags().IntVar(&auditWorkers, "workers", 3, "concurrent audits in --file mode")
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "emit JSON instead of text")
	rootCmd.AddCommand(auditCmd)
}
