package domain

// PipelineStats holds per-pipeline active-ticket counts. A ticket is active
// while its status is anything but completed. Total counts every ticket
// regardless of status or pipeline.
type PipelineStats struct {
	Marketing int
	Sales     int
	Orders    int
	Support   int
	Total     int
}

// CountFor returns the active count for one of the enumerated pipelines.
func (s PipelineStats) CountFor(p Pipeline) int {
	switch p {
	case PipelineMarketing:
		return s.Marketing
	case PipelineSales:
		return s.Sales
	case PipelineOrders:
		return s.Orders
	case PipelineSupport:
		return s.Support
	}
	return 0
}

// Add increments the count for the given pipeline if it is enumerated.
func (s *PipelineStats) Add(p Pipeline) {
	switch p {
	case PipelineMarketing:
		s.Marketing++
	case PipelineSales:
		s.Sales++
	case PipelineOrders:
		s.Orders++
	case PipelineSupport:
		s.Support++
	}
}
