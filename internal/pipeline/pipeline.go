package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"ctxtree/internal/content"
	"ctxtree/internal/transcript"
	"ctxtree/internal/tree"

	"golang.org/x/sync/errgroup"
)

// Document is one independent unit of work, usually one transcript file with
// its sub-agent files.
type Document struct {
	Project string
	Name    string
	Entries []transcript.Entry
}

type Options struct {
	Normalize     transcript.Options
	Dedup         bool
	PreviewLength int
}

func DefaultOptions() Options {
	return Options{
		Normalize:     transcript.DefaultOptions(),
		Dedup:         true,
		PreviewLength: transcript.DefaultPreviewLength,
	}
}

type Result struct {
	Project  string
	Document string

	Registry *tree.Registry
	// Sequence is the final emission order, after relocation.
	Sequence []int
	// Assembled is the tree before deduplication; Tree is what to display.
	Assembled    *tree.Tree
	Tree         *tree.Tree
	Links        int
	Deduplicated int

	Sessions    []transcript.SessionAggregate
	Diagnostics []transcript.Diagnostic
	Elapsed     time.Duration
	Err         error
}

// Run processes a single document. It never panics; failures, including
// structural errors, are reported in Result.Err.
func Run(doc Document, opts Options) (res *Result) {
	start := time.Now()
	res = &Result{Project: doc.Project, Document: doc.Name}
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("process %s: panic: %v", doc.Name, r)
		}
		res.Elapsed = time.Since(start)
	}()

	n := transcript.Normalize(doc.Entries, opts.Normalize)
	res.Diagnostics = n.Diagnostics
	res.Sessions = transcript.Aggregate(n, opts.PreviewLength)

	res.Registry = register(n)
	seq := res.Registry.Sequence()
	res.Links = tree.PairMessages(res.Registry, seq)
	seq = tree.Relocate(res.Registry, seq)
	seq = tree.PlaceSidechains(res.Registry, seq)
	seq = tree.DropRestatedPrompts(res.Registry, seq)
	res.Sequence = seq

	if err := tree.BuildHierarchy(res.Registry, seq); err != nil {
		res.Err = fmt.Errorf("build hierarchy: %w", err)
		return res
	}
	assembled, err := tree.Assemble(res.Registry, seq)
	if err != nil {
		res.Err = fmt.Errorf("assemble tree: %w", err)
		return res
	}
	res.Assembled = assembled
	res.Tree = assembled
	if opts.Dedup {
		res.Tree, res.Deduplicated = tree.Dedup(assembled)
	}
	return res
}

// register classifies every normalized entry into registry messages.
func register(n *transcript.Normalized) *tree.Registry {
	reg := tree.NewRegistry()
	classifier := content.NewClassifier(n.Summaries)
	seenRequests := map[string]bool{}
	for _, e := range n.Entries {
		meta := tree.MetaOf(e)
		for i, c := range classifier.Classify(e) {
			m := meta
			if i == 0 && e.Usage != nil && (e.RequestID == "" || !seenRequests[e.RequestID]) {
				m.Usage = e.Usage
				if e.RequestID != "" {
					seenRequests[e.RequestID] = true
				}
			}
			reg.Add(m, c)
		}
	}
	return reg
}

// RunAll processes documents concurrently, at most workers at a time
// (workers <= 0 means GOMAXPROCS). Results are returned in input order. A
// failing document never affects the others; the returned error is only set
// when ctx is cancelled, in which case unstarted documents carry ctx.Err().
func RunAll(ctx context.Context, docs []Document, opts Options, workers int) ([]*Result, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	results := make([]*Result, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = &Result{Project: doc.Project, Document: doc.Name, Err: err}
				return nil
			}
			res := Run(doc, opts)
			if res.Err != nil {
				slog.Warn("Failed to process document", "document", doc.Name, "error", res.Err)
			} else {
				slog.Debug("Processed document",
					"document", doc.Name,
					"messages", res.Registry.Len(),
					"links", res.Links,
					"deduplicated", res.Deduplicated,
					"elapsed", res.Elapsed)
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results, ctx.Err()
}
