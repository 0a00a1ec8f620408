// Package aggregation runs aggregation pipelines over a document snapshot.
// Each stage fully materializes its output before the next stage runs.
package aggregation

import (
	"context"
	"fmt"
	"strings"

	"github.com/adfharrison1/go-docquery/pkg/domain"
	"github.com/adfharrison1/go-docquery/pkg/filter"
	"github.com/adfharrison1/go-docquery/pkg/query"
)

// Run applies stages to docs in order. docs is not modified.
func Run(ctx context.Context, docs []domain.Document, stages []domain.Stage) ([]domain.Document, error) {
	if err := Validate(stages); err != nil {
		return nil, err
	}

	current := make([]domain.Document, len(docs))
	copy(current, docs)

	for _, stage := range stages {
		if err := domain.CheckContext(ctx); err != nil {
			return nil, err
		}
		var err error
		switch s := stage.(type) {
		case domain.MatchStage:
			var expr domain.FilterExpr
			if expr, err = filter.Prepare(s.Filter); err == nil {
				current, err = query.Filter(ctx, current, expr)
			}
		case domain.GroupStage:
			current, err = runGroup(ctx, current, s)
		case domain.SortStage:
			err = query.Sort(ctx, current, s.Keys)
		case domain.LimitStage:
			current = query.Window(current, 0, s.N)
			if s.N == 0 {
				current = []domain.Document{}
			}
		case domain.SkipStage:
			current = query.Window(current, s.N, 0)
		case domain.ProjectStage:
			current, err = runProject(ctx, current, s)
		}
		if err != nil {
			return nil, fmt.Errorf("%s stage: %w", stage.StageName(), err)
		}
	}
	// Results may share values with the input snapshot.
	for i, doc := range current {
		current[i] = doc.Clone()
	}
	return current, nil
}

// Validate checks every stage before any runs.
func Validate(stages []domain.Stage) error {
	for i, stage := range stages {
		if err := validateStage(stage); err != nil {
			return fmt.Errorf("stage %d: %w", i, err)
		}
	}
	return nil
}

func validateStage(stage domain.Stage) error {
	switch s := stage.(type) {
	case domain.MatchStage:
		_, err := filter.Prepare(s.Filter)
		return err
	case domain.GroupStage:
		if err := ValidateExpr(s.By); err != nil {
			return err
		}
		seen := make(map[string]bool, len(s.Accumulators))
		for _, acc := range s.Accumulators {
			if acc.Field == "" || acc.Field == domain.IDField || strings.ContainsAny(acc.Field, ".$") {
				return fmt.Errorf("%w: invalid accumulator field %q", domain.ErrInvalidArgument, acc.Field)
			}
			if seen[acc.Field] {
				return fmt.Errorf("%w: duplicate accumulator field %q", domain.ErrInvalidArgument, acc.Field)
			}
			seen[acc.Field] = true
			switch acc.Op {
			case domain.AccSum, domain.AccAvg, domain.AccMin, domain.AccMax, domain.AccFirst, domain.AccLast, domain.AccPush:
			default:
				return fmt.Errorf("%w: unknown accumulator %s", domain.ErrInvalidArgument, acc.Op)
			}
			if err := ValidateExpr(acc.Expr); err != nil {
				return err
			}
		}
		return nil
	case domain.SortStage:
		if len(s.Keys) == 0 {
			return fmt.Errorf("%w: $sort needs at least one key", domain.ErrInvalidArgument)
		}
		return domain.Query{Sort: s.Keys}.Validate()
	case domain.LimitStage:
		if s.N < 0 {
			return fmt.Errorf("%w: $limit cannot be negative", domain.ErrInvalidArgument)
		}
		return nil
	case domain.SkipStage:
		if s.N < 0 {
			return fmt.Errorf("%w: $skip cannot be negative", domain.ErrInvalidArgument)
		}
		return nil
	case domain.ProjectStage:
		_, err := projectMode(s)
		return err
	case nil:
		return fmt.Errorf("%w: nil stage", domain.ErrInvalidArgument)
	}
	return fmt.Errorf("%w: unsupported stage %s", domain.ErrInvalidArgument, stage.StageName())
}

// projectMode reports whether a $project spec is inclusive. Exclusions other
// than _id cannot be combined with inclusions or computed fields.
func projectMode(s domain.ProjectStage) (bool, error) {
	var include, exclude bool
	for _, f := range s.Fields {
		if err := domain.ValidatePath(f.Field); err != nil {
			return false, err
		}
		if f.Expr != nil {
			if err := ValidateExpr(f.Expr); err != nil {
				return false, err
			}
			if f.Field != domain.IDField {
				include = true
			}
			continue
		}
		if f.Field == domain.IDField {
			continue
		}
		if f.Include {
			include = true
		} else {
			exclude = true
		}
	}
	if include && exclude {
		return false, fmt.Errorf("%w: $project cannot mix inclusion and exclusion", domain.ErrInvalidArgument)
	}
	return include || onlyIDIncluded(s), nil
}

func onlyIDIncluded(s domain.ProjectStage) bool {
	return len(s.Fields) == 1 && s.Fields[0].Field == domain.IDField && s.Fields[0].Include
}

func runProject(ctx context.Context, docs []domain.Document, s domain.ProjectStage) ([]domain.Document, error) {
	if len(s.Fields) == 0 {
		return docs, nil
	}
	inclusive, err := projectMode(s)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Document, 0, len(docs))
	for _, doc := range docs {
		if err := domain.CheckContext(ctx); err != nil {
			return nil, err
		}
		out = append(out, project(doc, s, inclusive))
	}
	return out, nil
}

func project(doc domain.Document, s domain.ProjectStage, inclusive bool) domain.Document {
	if !inclusive {
		out := doc.Clone()
		for _, f := range s.Fields {
			if f.Expr != nil {
				if v := Eval(f.Expr, doc); v != domain.Missing {
					domain.SetPath(out, f.Field, v)
				}
				continue
			}
			if !f.Include {
				domain.UnsetPath(out, f.Field)
			}
		}
		return out
	}

	out := make(domain.Document, len(s.Fields)+1)
	keepID := true
	for _, f := range s.Fields {
		if f.Field == domain.IDField && f.Expr == nil && !f.Include {
			keepID = false
		}
	}
	if keepID {
		if id, ok := doc[domain.IDField]; ok {
			out[domain.IDField] = id
		}
	}
	for _, f := range s.Fields {
		switch {
		case f.Expr != nil:
			if v := Eval(f.Expr, doc); v != domain.Missing {
				domain.SetPath(out, f.Field, v)
			}
		case f.Include && f.Field != domain.IDField:
			if v, ok := domain.Lookup(doc, f.Field); ok {
				domain.SetPath(out, f.Field, v)
			}
		}
	}
	return out
}
