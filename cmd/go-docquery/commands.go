package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adfharrison1/go-docquery/pkg/aggregation"
	"github.com/adfharrison1/go-docquery/pkg/api"
	"github.com/adfharrison1/go-docquery/pkg/domain"
	"github.com/adfharrison1/go-docquery/pkg/server"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API",
		Example: `  go-docquery serve --port 9090
  go-docquery serve --backend file --data-dir /var/lib/docquery --durability full`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.open()
			if err != nil {
				return err
			}
			defer a.Close()
			if port != 0 {
				a.cfg.HTTP.Port = port
			}

			srv, err := server.NewServer(a.engine, a.logger, a.registry)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a.logger.Info("starting go-docquery",
				zap.Int("http_port", a.cfg.HTTP.Port),
				zap.String("backend", a.cfg.Storage.Backend),
				zap.String("data_dir", a.cfg.Storage.DataDir))
			return srv.Run(ctx, a.cfg.HTTP)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port (overrides config)")
	return cmd
}

func newImportCmd(flags *globalFlags) *cobra.Command {
	var collection string
	var batchSize int
	cmd := &cobra.Command{
		Use:   "import <file.json>",
		Short: "Insert documents from a JSON array or JSON-lines file",
		Long: `Insert documents from a file holding either a JSON array of objects or one
object per line. Each batch is inserted atomically. The collection defaults
to the file name without its extension.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if collection == "" {
				base := filepath.Base(path)
				collection = base[:len(base)-len(filepath.Ext(base))]
			}
			if batchSize < 1 || batchSize > api.MaxBatchSize {
				return fmt.Errorf("batch size must be between 1 and %d", api.MaxBatchSize)
			}

			f, err := os.Open(filepath.Clean(path))
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", path, err)
			}
			defer f.Close()

			a, err := flags.open()
			if err != nil {
				return err
			}
			defer a.Close()

			total := 0
			err = readDocuments(f, batchSize, func(batch []domain.Document) error {
				ids, err := a.engine.InsertMany(cmd.Context(), collection, batch)
				if err != nil {
					return fmt.Errorf("batch starting at document %d: %w", total, err)
				}
				total += len(ids)
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d documents into %s\n", total, collection)
			return nil
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "target collection")
	cmd.Flags().IntVar(&batchSize, "batch-size", 500, "documents per atomic insert")
	return cmd
}

// readDocuments streams documents from r in batches. r holds a JSON array
// or a sequence of JSON objects.
func readDocuments(r io.Reader, batchSize int, fn func([]domain.Document) error) error {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	dec := json.NewDecoder(br)
	isArray := first == '['
	if isArray {
		if _, err := dec.Token(); err != nil {
			return fmt.Errorf("failed to read array: %w", err)
		}
	}

	batch := make([]domain.Document, 0, batchSize)
	for n := 0; ; n++ {
		if isArray && !dec.More() {
			break
		}
		var doc domain.Document
		if err := dec.Decode(&doc); err != nil {
			if !isArray && errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("document %d: %w", n, err)
		}
		batch = append(batch, doc)
		if len(batch) == batchSize {
			if err := fn(batch); err != nil {
				return err
			}
			batch = make([]domain.Document, 0, batchSize)
		}
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

// queryFlags are shared by find and explain.
type queryFlags struct {
	collection string
	filter     string
	sort       string
	projection string
	skip       int
	limit      int
	page       int
	pageSize   int
}

func (qf *queryFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&qf.collection, "collection", "", "collection to query (required)")
	f.StringVar(&qf.filter, "filter", "", `filter object, e.g. '{"published_year": {"$gt": 2000}}'`)
	f.StringVar(&qf.sort, "sort", "", `sort object or list, e.g. '[{"author": 1}, {"published_year": -1}]'`)
	f.StringVar(&qf.projection, "projection", "", `projection object, e.g. '{"title": 1}'`)
	f.IntVar(&qf.skip, "skip", 0, "documents to skip")
	f.IntVar(&qf.limit, "limit", 0, "maximum documents to return (0 = no limit)")
	_ = cmd.MarkFlagRequired("collection")
}

func (qf *queryFlags) request() (api.QueryRequest, error) {
	req := api.QueryRequest{Skip: qf.skip, Limit: qf.limit, Page: qf.page, PageSize: qf.pageSize}
	if err := unmarshalFlag("filter", qf.filter, &req.Filter); err != nil {
		return req, err
	}
	if err := unmarshalFlag("sort", qf.sort, &req.Sort); err != nil {
		return req, err
	}
	if err := unmarshalFlag("projection", qf.projection, &req.Projection); err != nil {
		return req, err
	}
	return req, nil
}

func unmarshalFlag(name, value string, dst interface{}) error {
	if value == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(value), dst); err != nil {
		return fmt.Errorf("%w: --%s is not valid JSON: %v", domain.ErrInvalidArgument, name, err)
	}
	return nil
}

func newFindCmd(flags *globalFlags) *cobra.Command {
	qf := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "find",
		Short: "Query a collection and print matching documents, one per line",
		Example: `  go-docquery find --collection books --filter '{"genre": "Dystopian"}' --sort '{"published_year": -1}'
  go-docquery find --collection books --page 2 --page-size 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := qf.request()
			if err != nil {
				return err
			}
			q, err := req.ToQuery()
			if err != nil {
				return err
			}

			a, err := flags.open()
			if err != nil {
				return err
			}
			defer a.Close()

			out := json.NewEncoder(cmd.OutOrStdout())
			if req.Paged() {
				page, err := a.engine.FindPage(cmd.Context(), qf.collection, q,
					&domain.PaginationOptions{Page: req.Page, PageSize: req.PageSize})
				if err != nil {
					return err
				}
				return out.Encode(page)
			}
			docs, err := a.engine.Find(cmd.Context(), qf.collection, q)
			if err != nil {
				return err
			}
			return encodeEach(out, docs)
		},
	}
	qf.register(cmd)
	cmd.Flags().IntVar(&qf.page, "page", 0, "1-indexed page; prints page metadata")
	cmd.Flags().IntVar(&qf.pageSize, "page-size", 0, "documents per page")
	return cmd
}

func newAggregateCmd(flags *globalFlags) *cobra.Command {
	var collection, pipeline, pipelineFile string
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Run an aggregation pipeline and print the results, one per line",
		Example: `  go-docquery aggregate --collection books --pipeline '[{"$group": {"_id": "$author", "count": {"$sum": 1}}}, {"$sort": {"count": -1}}]'
  go-docquery aggregate --collection books --pipeline-file decades.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := []byte(pipeline)
			if pipelineFile != "" {
				data, err := os.ReadFile(filepath.Clean(pipelineFile))
				if err != nil {
					return fmt.Errorf("failed to read pipeline: %w", err)
				}
				raw = data
			}
			if len(raw) == 0 {
				return errors.New("one of --pipeline or --pipeline-file is required")
			}
			var stagesRaw []map[string]interface{}
			if err := json.Unmarshal(raw, &stagesRaw); err != nil {
				return fmt.Errorf("%w: pipeline must be a JSON array of stages: %v", domain.ErrInvalidArgument, err)
			}
			stages, err := aggregation.ParsePipeline(stagesRaw)
			if err != nil {
				return err
			}

			a, err := flags.open()
			if err != nil {
				return err
			}
			defer a.Close()

			docs, err := a.engine.Aggregate(cmd.Context(), collection, stages)
			if err != nil {
				return err
			}
			return encodeEach(json.NewEncoder(cmd.OutOrStdout()), docs)
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "collection to aggregate (required)")
	cmd.Flags().StringVar(&pipeline, "pipeline", "", "pipeline as a JSON array")
	cmd.Flags().StringVar(&pipelineFile, "pipeline-file", "", "file holding the pipeline")
	_ = cmd.MarkFlagRequired("collection")
	cmd.MarkFlagsMutuallyExclusive("pipeline", "pipeline-file")
	return cmd
}

func newExplainCmd(flags *globalFlags) *cobra.Command {
	qf := &queryFlags{}
	var execute bool
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Show the plan chosen for a query",
		Example: `  go-docquery explain --collection books --filter '{"author": "George Orwell"}' --execute`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := qf.request()
			if err != nil {
				return err
			}
			q, err := req.ToQuery()
			if err != nil {
				return err
			}

			a, err := flags.open()
			if err != nil {
				return err
			}
			defer a.Close()

			out := json.NewEncoder(cmd.OutOrStdout())
			out.SetIndent("", "  ")
			if execute {
				stats, err := a.engine.Explain(cmd.Context(), qf.collection, q)
				if err != nil {
					return err
				}
				return out.Encode(stats)
			}
			plan, err := a.engine.ExplainPlan(cmd.Context(), qf.collection, q)
			if err != nil {
				return err
			}
			return out.Encode(plan)
		},
	}
	qf.register(cmd)
	cmd.Flags().BoolVar(&execute, "execute", false, "run the query and report execution statistics")
	return cmd
}

func encodeEach(enc *json.Encoder, docs []domain.Document) error {
	for _, doc := range docs {
		if err := enc.Encode(doc); err != nil {
			return err
		}
	}
	return nil
}
