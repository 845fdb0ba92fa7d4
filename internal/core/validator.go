package core

import (
	"context"
	"fmt"

	"pidcheck/internal/connectivity"
	"pidcheck/internal/evaluate"
	"pidcheck/internal/graph"
	"pidcheck/internal/report"
	"pidcheck/internal/resolve"
	"pidcheck/pkg/domain"
)

// validate runs the connectivity check, the required-parameter check and
// every catalog constraint of every instance, in instance id order.
func (s *Service) validate(ctx context.Context, sch *graph.Schematic) domain.Report {
	b := report.NewBuilder(sch.ID).
		AddConnectivity(connectivity.Validate(sch)...).
		AddParameterIssues(MissingParameters(sch)...)

	ev := evaluate.New(resolve.New(sch, s.derived), s.compat)
	for _, inst := range sch.Instances() {
		b.AddResults(ev.Instance(inst)...)
	}
	r := b.Build()
	s.log(ctx).Debug("schematic validated",
		"schematic", sch.ID,
		"status", r.Status,
		"pass", r.Summary.Pass,
		"fail", r.Summary.Fail,
		"unresolvable", r.Summary.Unresolvable,
		"connectivity_issues", len(r.ConnectivityIssues),
		"parameter_issues", len(r.ParameterIssues),
	)
	return r
}

// MissingParameters reports every required parameter that has neither an
// assigned value nor a default, ordered by instance id and declaration order.
func MissingParameters(sch *graph.Schematic) []domain.ParameterIssue {
	issues := []domain.ParameterIssue{}
	for _, inst := range sch.Instances() {
		for _, spec := range inst.Type().Parameters {
			if !spec.Required {
				continue
			}
			if v, _ := inst.Value(spec.Name); !v.IsNull() {
				continue
			}
			issues = append(issues, domain.ParameterIssue{
				Kind:      domain.IssueMissingParameter,
				Instance:  inst.ID(),
				Parameter: spec.Name,
				Message:   fmt.Sprintf("required parameter %s.%s has no value", inst.ID(), spec.Name),
			})
		}
	}
	return issues
}
