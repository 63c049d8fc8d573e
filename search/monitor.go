package search

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	CacheHit(results []*Result)
	AfterEmbedding(vector []float32)
	Finish(results []*Result)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)               {}
func (n *noopMonitor) CacheHit(_ []*Result)         {}
func (n *noopMonitor) AfterEmbedding(_ []float32)   {}
func (n *noopMonitor) Finish(_ []*Result)           {}
