package validator

import (
	"context"

	"shardauth/internal/chainnode"
)

// Vote is one validator's verdict on a proposal.
type Vote struct {
	Node     chainnode.Address `json:"node"`
	Accepted bool              `json:"vote"`
}

// Decision is the outcome of a consensus round.
type Decision struct {
	Leader    chainnode.Address `json:"leader"`
	Votes     []Vote            `json:"votes"`
	Positive  int               `json:"positive"`
	Threshold int               `json:"threshold"`
	Accepted  bool              `json:"accepted"`
}

// MajorityThreshold is ceil(n/2).
func MajorityThreshold(n int) int {
	return (n + 1) / 2
}

// SupermajorityThreshold is ceil(2n/3).
func SupermajorityThreshold(n int) int {
	return (2*n + 2) / 3
}

// Tally counts the accepting votes.
func Tally(votes []Vote) int {
	positive := 0
	for _, v := range votes {
		if v.Accepted {
			positive++
		}
	}
	return positive
}

// Decide runs a consensus round on whether candidate matches reference.
//
// The first validator proposes and does not vote. Every other validator votes
// on the same string comparison, so all votes agree; the round only fails on
// a mismatch or when the set is too small to reach the threshold. The
// threshold is ceil(2n/3) of the whole set including the leader, which means
// sets of one or two validators can never accept.
func (p *Pool) Decide(ctx context.Context, candidate, reference string) (Decision, error) {
	accts, err := p.List(ctx)
	if err != nil {
		return Decision{}, err
	}
	if len(accts) == 0 {
		return Decision{}, ErrNoValidators
	}
	p.metrics.SetValidatorSetSize(len(accts))

	d := Decision{
		Leader:    accts[0],
		Votes:     make([]Vote, 0, len(accts)-1),
		Threshold: SupermajorityThreshold(len(accts)),
	}
	p.logger.DebugContext(ctx, "consensus round proposed", "leader", d.Leader, "validators", len(accts))

	for _, node := range accts[1:] {
		v := Vote{Node: node, Accepted: candidate == reference}
		p.logger.DebugContext(ctx, "validator voted", "node", node, "accepted", v.Accepted)
		d.Votes = append(d.Votes, v)
	}

	d.Positive = Tally(d.Votes)
	d.Accepted = d.Positive >= d.Threshold
	p.logger.DebugContext(ctx, "consensus round closed",
		"positive", d.Positive,
		"threshold", d.Threshold,
		"accepted", d.Accepted,
	)
	return d, nil
}
