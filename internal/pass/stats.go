package pass

// Stats accumulates counters across a pipeline run, per spec §4.G. Each
// pass adds to the fields it affects; the manager reports the totals
// after RunPipeline returns.
type Stats struct {
	InstructionsFolded  int
	BlocksRemoved       int
	PredecessorsMerged  int
	SwitchToBr          int
	CbrToBr             int
	InlinedCallSites    int
	PromotedAllocas     int
	GrowthDelta         int
}

// Add merges o's counters into s.
func (s *Stats) Add(o Stats) {
	s.InstructionsFolded += o.InstructionsFolded
	s.BlocksRemoved += o.BlocksRemoved
	s.PredecessorsMerged += o.PredecessorsMerged
	s.SwitchToBr += o.SwitchToBr
	s.CbrToBr += o.CbrToBr
	s.InlinedCallSites += o.InlinedCallSites
	s.PromotedAllocas += o.PromotedAllocas
	s.GrowthDelta += o.GrowthDelta
}
