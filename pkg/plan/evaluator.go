package plan

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/TNO-ropt/ropt-everest/pkg/engine"
	"github.com/TNO-ropt/ropt-everest/pkg/results"
	"github.com/TNO-ropt/ropt-everest/pkg/telemetry"
)

// CachedEvaluatorOptions configures a caching evaluator.
type CachedEvaluatorOptions struct {
	// Inner is the wrapped evaluator. Required.
	Inner engine.Evaluator
}

// CachedEvaluator wraps an evaluator with a per-realization result cache.
// A variable vector already evaluated for the same realization is served
// from the cache; only the remaining rows reach the inner evaluator. The
// merged record's evaluation and batch ids point at the batch that
// actually produced each row, so reports show the true origin of cached
// rows.
type CachedEvaluator struct {
	inner   engine.Evaluator
	logger  *telemetry.Logger
	metrics *telemetry.Metrics

	cache map[cacheKey]cacheEntry
}

type cacheKey struct {
	realization int
	hash        uint64
}

type cacheEntry struct {
	batchID      int
	evaluationID int
	hasEvalID    bool
	objectives   []float64
	constraints  []float64
}

func newCachedEvaluatorComponent(p *Plan, opts any) (engine.Evaluator, error) {
	evalOpts, ok := opts.(CachedEvaluatorOptions)
	if !ok {
		return nil, engine.NewConfigError(
			fmt.Sprintf("cached evaluator options have type %T", opts), nil,
		).WithComponent("plan")
	}
	if evalOpts.Inner == nil {
		return nil, engine.NewConfigError("cached evaluator requires an inner evaluator", nil).WithComponent("cache")
	}
	return &CachedEvaluator{
		inner:   evalOpts.Inner,
		logger:  p.logger.NewComponentLogger("cache"),
		metrics: p.metrics,
		cache:   make(map[cacheKey]cacheEntry),
	}, nil
}

// Eval implements engine.Evaluator. Variables carries one vector per
// realization in the evaluation context.
func (e *CachedEvaluator) Eval(
	ctx context.Context, variables [][]float64, ec engine.EvaluatorContext,
) (*results.FunctionResults, error) {
	if len(variables) != len(ec.Realizations) {
		return nil, engine.NewValidationError(
			fmt.Sprintf("%d variable vectors for %d realizations", len(variables), len(ec.Realizations)), nil,
		).WithComponent("cache")
	}

	hits := make(map[int]cacheEntry)
	var missing []int
	for i, vector := range variables {
		key := cacheKey{realization: ec.Realizations[i], hash: hashVector(vector)}
		entry, ok := e.cache[key]
		if ok {
			hits[i] = entry
		} else {
			missing = append(missing, i)
		}
		if e.metrics != nil {
			e.metrics.RecordCacheLookup(ok)
		}
	}

	var fresh *results.FunctionResults
	if len(missing) > 0 {
		missVars := make([][]float64, len(missing))
		missReals := make([]int, len(missing))
		for j, i := range missing {
			missVars[j] = variables[i]
			missReals[j] = ec.Realizations[i]
		}
		var err error
		fresh, err = e.inner.Eval(ctx, missVars, engine.EvaluatorContext{
			BatchID:      ec.BatchID,
			Realizations: missReals,
			Metadata:     ec.Metadata,
		})
		if err != nil {
			return nil, err
		}
	}

	merged := e.merge(variables, ec, hits, missing, fresh)
	e.store(variables, ec, missing, fresh)
	if len(hits) > 0 {
		e.logger.WithBatchID(ec.BatchID).
			WithField("hits", len(hits)).
			WithField("misses", len(missing)).
			Debug("evaluation served partly from cache")
	}
	return merged, nil
}

// merge assembles the full per-realization record from cached rows and the
// freshly evaluated record.
func (e *CachedEvaluator) merge(
	variables [][]float64,
	ec engine.EvaluatorContext,
	hits map[int]cacheEntry,
	missing []int,
	fresh *results.FunctionResults,
) *results.FunctionResults {
	// Without any cache hit the fresh record already covers all rows; only
	// the per-row batch ids need filling in.
	if len(hits) == 0 && fresh != nil {
		if fresh.Evaluations != nil && len(fresh.Evaluations.EvaluationIDs) > 0 {
			ids := make([]int, len(fresh.Evaluations.EvaluationIDs))
			for i := range ids {
				ids[i] = fresh.Batch
			}
			fresh.Evaluations.BatchIDs = ids
		}
		return fresh
	}

	n := len(ec.Realizations)
	nObjectives, nConstraints := 0, 0
	if fresh != nil {
		nObjectives, nConstraints = fresh.Objectives, fresh.NConstraints
	} else {
		for _, entry := range hits {
			nObjectives, nConstraints = len(entry.objectives), len(entry.constraints)
			break
		}
	}

	batch := ec.BatchID
	if fresh != nil {
		batch = fresh.Batch
	}

	evaluations := &results.FunctionEvaluations{
		Objectives: make([]float64, n*nObjectives),
	}
	if n > 0 {
		evaluations.Variables = append([]float64(nil), variables[0]...)
	}
	if nConstraints > 0 {
		evaluations.Constraints = make([]float64, n*nConstraints)
	}

	ids := make([]int, n)
	batchIDs := make([]int, n)
	haveIDs := true

	missRow := make(map[int]int, len(missing))
	for j, i := range missing {
		missRow[i] = j
	}

	for i := 0; i < n; i++ {
		if entry, ok := hits[i]; ok {
			copy(evaluations.Objectives[i*nObjectives:], entry.objectives)
			if nConstraints > 0 {
				copy(evaluations.Constraints[i*nConstraints:], entry.constraints)
			}
			ids[i] = entry.evaluationID
			batchIDs[i] = entry.batchID
			if !entry.hasEvalID {
				haveIDs = false
			}
			continue
		}

		j := missRow[i]
		if fresh != nil && fresh.Evaluations != nil {
			copy(evaluations.Objectives[i*nObjectives:(i+1)*nObjectives],
				fresh.Evaluations.Objectives[j*nObjectives:])
			if nConstraints > 0 && len(fresh.Evaluations.Constraints) > 0 {
				copy(evaluations.Constraints[i*nConstraints:(i+1)*nConstraints],
					fresh.Evaluations.Constraints[j*nConstraints:])
			}
			if j < len(fresh.Evaluations.EvaluationIDs) {
				ids[i] = fresh.Evaluations.EvaluationIDs[j]
			} else {
				haveIDs = false
			}
		} else {
			haveIDs = false
		}
		batchIDs[i] = batch
	}

	if haveIDs {
		evaluations.EvaluationIDs = ids
		evaluations.BatchIDs = batchIDs
	}

	return &results.FunctionResults{
		Batch:        batch,
		Metadata:     ec.Metadata,
		Realizations: n,
		Objectives:   nObjectives,
		NConstraints: nConstraints,
		Evaluations:  evaluations,
	}
}

// store caches the freshly evaluated rows.
func (e *CachedEvaluator) store(
	variables [][]float64, ec engine.EvaluatorContext, missing []int, fresh *results.FunctionResults,
) {
	if fresh == nil || fresh.Evaluations == nil {
		return
	}
	nObjectives, nConstraints := fresh.Objectives, fresh.NConstraints
	for j, i := range missing {
		entry := cacheEntry{batchID: fresh.Batch}
		if len(fresh.Evaluations.Objectives) >= (j+1)*nObjectives {
			entry.objectives = append([]float64(nil),
				fresh.Evaluations.Objectives[j*nObjectives:(j+1)*nObjectives]...)
		}
		if nConstraints > 0 && len(fresh.Evaluations.Constraints) >= (j+1)*nConstraints {
			entry.constraints = append([]float64(nil),
				fresh.Evaluations.Constraints[j*nConstraints:(j+1)*nConstraints]...)
		}
		if j < len(fresh.Evaluations.EvaluationIDs) {
			entry.evaluationID = fresh.Evaluations.EvaluationIDs[j]
			entry.hasEvalID = true
		}
		e.cache[cacheKey{realization: ec.Realizations[i], hash: hashVector(variables[i])}] = entry
	}
}

// hashVector hashes the exact bit patterns of a variable vector.
func hashVector(vector []float64) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, v := range vector {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}
