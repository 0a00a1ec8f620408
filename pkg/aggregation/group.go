package aggregation

import (
	"bytes"
	"context"
	"fmt"

	"github.com/adfharrison1/go-docquery/pkg/domain"
	"github.com/vmihailenco/msgpack/v5"
)

type accumulatorState struct {
	acc      domain.Accumulator
	constant *float64
	sum      float64
	count    int
	value    interface{}
	seen     bool
	values   []interface{}
}

type group struct {
	key    interface{}
	states []*accumulatorState
}

// canonicalKey folds -0 into 0 throughout v; msgpack encodes the two apart.
func canonicalKey(v interface{}) interface{} {
	switch x := v.(type) {
	case float64:
		if x == 0 {
			return 0.0
		}
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = canonicalKey(e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, e := range x {
			out[k] = canonicalKey(e)
		}
		return out
	case domain.Document:
		return canonicalKey(map[string]interface{}(x))
	}
	return v
}

// groupKey encodes a key value canonically so equal keys share a bucket.
// Map keys are sorted, so sub-record keys compare by content.
func groupKey(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("failed to encode group key: %w", err)
	}
	return buf.String(), nil
}

func runGroup(ctx context.Context, docs []domain.Document, stage domain.GroupStage) ([]domain.Document, error) {
	groups := make(map[string]*group)
	var order []*group

	for _, doc := range docs {
		if err := domain.CheckContext(ctx); err != nil {
			return nil, err
		}
		key := Eval(stage.By, doc)
		if key == domain.Missing {
			key = nil
		}
		key = canonicalKey(key)
		encoded, err := groupKey(key)
		if err != nil {
			return nil, err
		}
		g, ok := groups[encoded]
		if !ok {
			g = newGroup(key, stage.Accumulators)
			groups[encoded] = g
			order = append(order, g)
		}
		for _, s := range g.states {
			s.add(doc)
		}
	}

	out := make([]domain.Document, 0, len(order))
	for _, g := range order {
		doc := domain.Document{domain.IDField: g.key}
		for _, s := range g.states {
			doc[s.acc.Field] = s.result()
		}
		out = append(out, doc)
	}
	return out, nil
}

func newGroup(key interface{}, accs []domain.Accumulator) *group {
	g := &group{key: key, states: make([]*accumulatorState, len(accs))}
	for i, acc := range accs {
		s := &accumulatorState{acc: acc}
		if lit, ok := acc.Expr.(domain.Literal); ok && acc.Op == domain.AccSum {
			if f, isNum := domain.ToFloat64(lit.Value); isNum {
				s.constant = &f
			}
		}
		g.states[i] = s
	}
	return g
}

func (s *accumulatorState) add(doc domain.Document) {
	if s.constant != nil {
		s.count++
		return
	}
	v := Eval(s.acc.Expr, doc)
	switch s.acc.Op {
	case domain.AccSum, domain.AccAvg:
		if domain.KindOf(v) == domain.KindNumber {
			f, _ := domain.ToFloat64(v)
			s.sum += f
			s.count++
		}
	case domain.AccMin, domain.AccMax:
		if v == domain.Missing || v == nil {
			return
		}
		if !s.seen {
			s.value, s.seen = v, true
			return
		}
		c := domain.CompareValues(v, s.value)
		if (s.acc.Op == domain.AccMin && c < 0) || (s.acc.Op == domain.AccMax && c > 0) {
			s.value = v
		}
	case domain.AccFirst:
		if !s.seen {
			s.value, s.seen = missingToNull(v), true
		}
	case domain.AccLast:
		s.value, s.seen = missingToNull(v), true
	case domain.AccPush:
		if v != domain.Missing {
			s.values = append(s.values, v)
		}
	}
}

func (s *accumulatorState) result() interface{} {
	if s.constant != nil {
		return float64(s.count) * *s.constant
	}
	switch s.acc.Op {
	case domain.AccSum:
		return s.sum
	case domain.AccAvg:
		if s.count == 0 {
			return nil
		}
		return s.sum / float64(s.count)
	case domain.AccPush:
		if s.values == nil {
			return []interface{}{}
		}
		return s.values
	}
	return s.value
}

func missingToNull(v interface{}) interface{} {
	if v == domain.Missing {
		return nil
	}
	return v
}
