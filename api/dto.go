/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the balancer's domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

WIRE FORMAT:
  - Field names are snake_case
  - Dates are YYYY-MM-DD
  - Quantities are JSON numbers; internally they are decimals, so values
    with more precision than float64 are rounded on the way out

VALIDATION:
  Validation is done by milestone.Service, not in DTOs. DTOs are pure data
  carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - balancer/types.go: Domain types
*/
package api

import (
	"time"

	"github.com/coppermind/milestone-engine/balancer"
	"github.com/shopspring/decimal"
)

// =============================================================================
// MILESTONES
// =============================================================================

// MilestoneDTO represents a milestone in API responses.
type MilestoneDTO struct {
	ID              string    `json:"id"`
	TargetMetric    string    `json:"target_metric"`
	TargetValue     float64   `json:"target_value"`
	CurrentValue    float64   `json:"current_value"`
	PeriodStart     string    `json:"period_start"`
	PeriodEnd       string    `json:"period_end"`
	Strategy        string    `json:"strategy"`
	Label           string    `json:"label,omitempty"`
	Unit            string    `json:"unit,omitempty"`
	DailyAmount     float64   `json:"daily_amount,omitempty"`
	ProgressPercent float64   `json:"progress_percent"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CreateMilestoneRequest is the body for creating a milestone.
type CreateMilestoneRequest struct {
	TargetMetric string  `json:"target_metric"`
	TargetValue  float64 `json:"target_value"`
	PeriodStart  string  `json:"period_start"`
	PeriodEnd    string  `json:"period_end"`
	Strategy     string  `json:"strategy,omitempty"`
	Label        string  `json:"label,omitempty"`
	Unit         string  `json:"unit,omitempty"`
	DailyAmount  float64 `json:"daily_amount,omitempty"`
}

// UpdateMilestoneRequest is the body for editing a milestone.
// Omitted fields are left unchanged.
type UpdateMilestoneRequest struct {
	TargetMetric *string  `json:"target_metric,omitempty"`
	TargetValue  *float64 `json:"target_value,omitempty"`
	CurrentValue *float64 `json:"current_value,omitempty"`
	Strategy     *string  `json:"strategy,omitempty"`
	Label        *string  `json:"label,omitempty"`
	Unit         *string  `json:"unit,omitempty"`
	DailyAmount  *float64 `json:"daily_amount,omitempty"`
}

// =============================================================================
// LINKED GOALS
// =============================================================================

// MetricDTO is one quantity tracked on a linked goal.
type MetricDTO struct {
	Label   string  `json:"label"`
	Current float64 `json:"current"`
	Target  float64 `json:"target"`
	Unit    string  `json:"unit,omitempty"`
}

// LinkedGoalDTO represents a linked goal in API responses.
type LinkedGoalDTO struct {
	ID          string      `json:"id"`
	MilestoneID string      `json:"milestone_id"`
	Text        string      `json:"text"`
	Completed   bool        `json:"completed"`
	DueDate     *string     `json:"due_date,omitempty"`
	Metrics     []MetricDTO `json:"metrics"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// CreateGoalRequest is the body for linking a goal to a milestone.
type CreateGoalRequest struct {
	Text      string      `json:"text"`
	DueDate   string      `json:"due_date,omitempty"`
	Completed bool        `json:"completed"`
	Metrics   []MetricDTO `json:"metrics,omitempty"`
}

// UpdateGoalRequest is the body for editing a linked goal.
type UpdateGoalRequest struct {
	Text      *string     `json:"text,omitempty"`
	DueDate   *string     `json:"due_date,omitempty"`
	Completed *bool       `json:"completed,omitempty"`
	Metrics   []MetricDTO `json:"metrics,omitempty"`
}

// =============================================================================
// ENGINE OUTPUTS
// =============================================================================

// DailyDistributionDTO is one row of the preview table.
type DailyDistributionDTO struct {
	Date   string  `json:"date"`
	Target float64 `json:"target"`
	Actual float64 `json:"actual"`
}

// PlanDTO is today's snapshot for a milestone.
type PlanDTO struct {
	MilestoneID         string  `json:"milestone_id"`
	Today               string  `json:"today"`
	RemainingTarget     float64 `json:"remaining_target"`
	RemainingDays       int     `json:"remaining_days"`
	ElapsedDays         int     `json:"elapsed_days"`
	DailyTarget         float64 `json:"daily_target"`
	Status              string  `json:"status"`
	Velocity            float64 `json:"velocity"`
	EstimatedCompletion *string `json:"estimated_completion"`
	ProgressPercent     float64 `json:"progress_percent"`
	ObservedValue       float64 `json:"observed_value"`
	NeedsRedistribution bool    `json:"needs_redistribution"`
}

// BalancerResultDTO reports a redistribution run.
type BalancerResultDTO struct {
	MilestoneID   string  `json:"milestone_id"`
	DailyRequired float64 `json:"daily_required"`
	UpdatedGoals  int     `json:"updated_goals"`
	Message       string  `json:"message"`
}

// =============================================================================
// MISC
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Strategy    string `json:"strategy,omitempty"`
}

// LoadScenarioRequest is the body for loading a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toMilestoneDTO(m balancer.Milestone) MilestoneDTO {
	return MilestoneDTO{
		ID:              m.ID,
		TargetMetric:    m.TargetMetric,
		TargetValue:     m.TargetValue.InexactFloat64(),
		CurrentValue:    m.CurrentValue.InexactFloat64(),
		PeriodStart:     m.Period.Start.String(),
		PeriodEnd:       m.Period.End.String(),
		Strategy:        string(m.Strategy),
		Label:           m.Label,
		Unit:            m.Unit,
		DailyAmount:     m.DailyAmount.InexactFloat64(),
		ProgressPercent: m.ProgressPercent().InexactFloat64(),
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func toLinkedGoalDTO(g balancer.LinkedGoal) LinkedGoalDTO {
	dto := LinkedGoalDTO{
		ID:          g.ID,
		MilestoneID: g.MilestoneID,
		Text:        g.Text,
		Completed:   g.Completed,
		Metrics:     make([]MetricDTO, len(g.Metrics)),
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
	if g.DueDate != nil {
		due := g.DueDate.String()
		dto.DueDate = &due
	}
	for i, m := range g.Metrics {
		dto.Metrics[i] = MetricDTO{
			Label:   m.Label,
			Current: m.Current.InexactFloat64(),
			Target:  m.Target.InexactFloat64(),
			Unit:    m.Unit,
		}
	}
	return dto
}

func fromMetricDTOs(dtos []MetricDTO) []balancer.Metric {
	if dtos == nil {
		return nil
	}
	metrics := make([]balancer.Metric, len(dtos))
	for i, m := range dtos {
		metrics[i] = balancer.Metric{
			Label:   m.Label,
			Current: decimal.NewFromFloat(m.Current),
			Target:  decimal.NewFromFloat(m.Target),
			Unit:    m.Unit,
		}
	}
	return metrics
}

func toDailyDistributionDTOs(days []balancer.DailyDistribution) []DailyDistributionDTO {
	dtos := make([]DailyDistributionDTO, len(days))
	for i, d := range days {
		dtos[i] = DailyDistributionDTO{
			Date:   d.Date.String(),
			Target: d.Target.InexactFloat64(),
			Actual: d.Actual.InexactFloat64(),
		}
	}
	return dtos
}

func toPlanDTO(id string, p balancer.Plan) PlanDTO {
	dto := PlanDTO{
		MilestoneID:         id,
		Today:               p.Today.String(),
		RemainingTarget:     p.RemainingTarget.InexactFloat64(),
		RemainingDays:       p.RemainingDays,
		ElapsedDays:         p.ElapsedDays,
		DailyTarget:         p.DailyTarget.InexactFloat64(),
		Status:              string(p.Status),
		Velocity:            p.Velocity.Round(2).InexactFloat64(),
		ProgressPercent:     p.ProgressPercent.InexactFloat64(),
		ObservedValue:       p.ObservedValue.InexactFloat64(),
		NeedsRedistribution: p.NeedsRebalance,
	}
	if p.EstimatedDone != nil {
		done := p.EstimatedDone.String()
		dto.EstimatedCompletion = &done
	}
	return dto
}

func toBalancerResultDTO(r balancer.BalancerResult) BalancerResultDTO {
	return BalancerResultDTO{
		MilestoneID:   r.MilestoneID,
		DailyRequired: r.DailyRequired.InexactFloat64(),
		UpdatedGoals:  r.UpdatedGoals,
		Message:       r.Message,
	}
}

func floatPtrToDecimal(f *float64) *decimal.Decimal {
	if f == nil {
		return nil
	}
	d := decimal.NewFromFloat(*f)
	return &d
}
