package model

import (
    "time"

    "fleetspan/internal/opt"
    "fleetspan/internal/problem"
)

// API and persistence types for solver runs

type RunStatus string

const (
    RunQueued    RunStatus = "queued"
    RunRunning   RunStatus = "running"
    RunSucceeded RunStatus = "succeeded"
    RunFailed    RunStatus = "failed"
    RunCancelled RunStatus = "cancelled"
)

// Done reports whether the run reached a final state.
func (s RunStatus) Done() bool {
    return s == RunSucceeded || s == RunFailed || s == RunCancelled
}

type SolveRequest struct {
    Problem problem.Spec   `json:"problem"`
    // Matrix is optional "from to distance time" text for matrix costs
    Matrix  string         `json:"matrix,omitempty"`
    Solver  *SolverOptions `json:"solver,omitempty"`
    Async   bool           `json:"async,omitempty"`
}

// SolverOptions override the server's solver defaults for one run.
type SolverOptions struct {
    MaxIterations    int       `json:"maxIterations,omitempty"`
    TimeBudgetMs     int       `json:"timeBudgetMs,omitempty"`
    Seed             int64     `json:"seed,omitempty"`
    InitTemp         float64   `json:"initTemp,omitempty"`
    Cooling          float64   `json:"cooling,omitempty"`
    RemovalWeights   []float64 `json:"removalWeights,omitempty"`
    InsertionWeights []float64 `json:"insertionWeights,omitempty"`
    Workers          int       `json:"workers,omitempty"`
    TermWindow       int       `json:"termWindow,omitempty"`
    TermThreshold    float64   `json:"termThreshold,omitempty"`
}

// Apply returns base with every set option layered on top.
func (o *SolverOptions) Apply(base opt.Config) opt.Config {
    if o == nil { return base }
    if o.MaxIterations > 0 { base.Iterations = o.MaxIterations }
    if o.TimeBudgetMs > 0 { base.TimeBudget = time.Duration(o.TimeBudgetMs) * time.Millisecond }
    if o.Seed != 0 { base.Seed = o.Seed }
    if o.InitTemp > 0 { base.InitialTemp = o.InitTemp }
    if o.Cooling > 0 { base.Cooling = o.Cooling }
    if len(o.RemovalWeights) == 2 { base.InitialRemovalWeights = o.RemovalWeights }
    if len(o.InsertionWeights) == 2 { base.InitialInsertionWeights = o.InsertionWeights }
    if o.Workers > 0 { base.Workers = o.Workers }
    if o.TermWindow > 0 { base.Termination.Window = o.TermWindow }
    if o.TermThreshold > 0 { base.Termination.Threshold = o.TermThreshold }
    return base
}

type Run struct {
    ID         string       `json:"id"`
    Name       string       `json:"name,omitempty"`
    Status     RunStatus    `json:"status"`
    Jobs       int          `json:"jobs"`
    Vehicles   int          `json:"vehicles"`
    Iterations int          `json:"iterations"`
    Fitness    float64      `json:"fitness"`
    Summary    *opt.Summary `json:"summary,omitempty"`
    Error      string       `json:"error,omitempty"`
    CreatedAt  time.Time    `json:"createdAt"`
    UpdatedAt  time.Time    `json:"updatedAt"`
    StartedAt  *time.Time   `json:"startedAt,omitempty"`
    FinishedAt *time.Time   `json:"finishedAt,omitempty"`
}

// PlanMetrics is the persisted search telemetry of one run and algorithm.
type PlanMetrics struct {
    RunID                 string               `json:"runId"`
    Algo                  string               `json:"algo"`
    Seed                  int64                `json:"seed"`
    Iterations            int                  `json:"iterations"`
    Improvements          int                  `json:"improvements"`
    AcceptedWorse         int                  `json:"acceptedWorse"`
    TerminatedEarly       bool                 `json:"terminatedEarly"`
    BestCost              float64              `json:"bestCost"`
    FinalCost             float64              `json:"finalCost"`
    RemovalSelects        [2]int               `json:"removalSelects"`
    InsertSelects         [2]int               `json:"insertSelects"`
    FinalRemovalWeights   [2]float64           `json:"finalRemovalWeights"`
    FinalInsertionWeights [2]float64           `json:"finalInsertionWeights"`
    Snapshots             []opt.WeightSnapshot `json:"snapshots,omitempty"`
    DurationMs            int64                `json:"durationMs"`
    CreatedAt             time.Time            `json:"createdAt"`
}

// NewPlanMetrics converts engine metrics for storage.
func NewPlanMetrics(runID, algo string, m opt.Metrics) PlanMetrics {
    return PlanMetrics{
        RunID: runID, Algo: algo, Seed: m.Seed,
        Iterations: m.Iterations, Improvements: m.Improvements, AcceptedWorse: m.AcceptedWorse,
        TerminatedEarly: m.TerminatedEarly, BestCost: m.BestCost, FinalCost: m.FinalCost,
        RemovalSelects: m.RemovalSelects, InsertSelects: m.InsertSelects,
        FinalRemovalWeights: m.FinalRemovalWeights, FinalInsertionWeights: m.FinalInsertionWeights,
        Snapshots: m.Snapshots, DurationMs: m.Duration.Milliseconds(),
    }
}

// RunEvent is pushed to progress subscribers and webhooks.
type RunEvent struct {
    Type     string        `json:"type"` // run.started, run.progress, run.completed, run.failed
    RunID    string        `json:"runId"`
    Status   RunStatus     `json:"status,omitempty"`
    Progress *opt.Progress `json:"progress,omitempty"`
    Fitness  float64       `json:"fitness,omitempty"`
    Error    string        `json:"error,omitempty"`
    TS       string        `json:"ts"`
}
