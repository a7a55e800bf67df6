package store

// Stores provides typed accessors over a shared Querier (pool or transaction).
type Stores struct {
	q Querier
}

func NewStores(q Querier) *Stores {
	return &Stores{q: q}
}

func (s *Stores) Proposals() ProposalStore {
	return newProposalStore(s.q)
}

func (s *Stores) Usage() UsageStore {
	return newUsageStore(s.q)
}
