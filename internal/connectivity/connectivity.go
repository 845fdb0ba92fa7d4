// Package connectivity checks the structure of a schematic graph: every
// connection must join ports of the same connection type and complementary
// directions, and every non-optional port must be connected.
package connectivity

import (
	"fmt"
	"strings"

	"pidcheck/internal/graph"
	"pidcheck/pkg/domain"
)

// Check lists the problems with joining ports a and b. An empty result means
// the pair is compatible. Direction only needs to be complementary; which end
// was declared as From does not matter.
func Check(a, b domain.PortSpec) []string {
	var problems []string
	if a.Type != b.Type {
		problems = append(problems, fmt.Sprintf("connection type %s does not match %s", a.Type, b.Type))
	}
	if a.Direction == b.Direction {
		problems = append(problems, fmt.Sprintf("both ports have direction %s", a.Direction))
	}
	return problems
}

// Usable reports whether the resolver may traverse conn. Connections whose
// ports are unknown or incompatible are not traversed.
func Usable(s *graph.Schematic, conn domain.Connection) bool {
	a, okA := s.PortSpec(conn.From)
	b, okB := s.PortSpec(conn.To)
	return okA && okB && len(Check(a, b)) == 0
}

// Validate walks instances in id order and their ports in declaration order.
// It reports one MissingConnection per unconnected non-optional port and one
// IncompatibleConnection per bad connection, emitted when the walk reaches the
// connection's From endpoint. The result is never nil.
func Validate(s *graph.Schematic) []domain.ConnectivityIssue {
	issues := []domain.ConnectivityIssue{}
	for _, inst := range s.Instances() {
		for _, port := range inst.Type().Ports {
			ref := domain.PortRef{Instance: inst.ID(), Port: port.Name}
			conn, ok := s.ConnectionAt(ref)
			if !ok {
				if !port.Optional {
					issues = append(issues, domain.ConnectivityIssue{
						Kind:     domain.IssueMissingConnection,
						Instance: inst.ID(),
						Port:     port.Name,
						Message:  fmt.Sprintf("port %s (%s %s) is not connected", ref, port.Type, port.Direction),
					})
				}
				continue
			}
			if conn.From != ref {
				continue
			}
			peer, _ := s.PortSpec(conn.To)
			problems := Check(port, peer)
			if len(problems) == 0 {
				continue
			}
			issues = append(issues, domain.ConnectivityIssue{
				Kind:    domain.IssueIncompatibleConnection,
				From:    descriptor(conn.From, port),
				To:      descriptor(conn.To, peer),
				Message: fmt.Sprintf("connection %s is incompatible: %s", conn, strings.Join(problems, "; ")),
			})
		}
	}
	return issues
}

func descriptor(ref domain.PortRef, spec domain.PortSpec) *domain.PortDescriptor {
	return &domain.PortDescriptor{
		Instance:  ref.Instance,
		Port:      ref.Port,
		Type:      spec.Type,
		Direction: spec.Direction,
	}
}
