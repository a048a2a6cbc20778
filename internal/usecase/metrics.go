package usecase

import "context"

// MetricsSummary represents aggregated face verification insights.
type MetricsSummary struct {
	TotalRequests    int64   `json:"total_requests"`
	EncodedRequests  int64   `json:"encoded_requests"`
	SuccessRate      float64 `json:"success_rate"`
	AverageFaces     float64 `json:"average_faces"`
	AverageLatencyMs float64 `json:"average_latency_ms"`
}

// GetMetricsSummary aggregates verification metrics from persisted logs.
func (uc *FaceUseCase) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	aggregation, err := uc.repo.AggregateMetrics(ctx)
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{
		TotalRequests:    aggregation.TotalCount,
		EncodedRequests:  aggregation.EncodedCount,
		AverageFaces:     aggregation.AverageFaces,
		AverageLatencyMs: aggregation.AverageLatencyMs,
	}

	if aggregation.TotalCount > 0 {
		summary.SuccessRate = float64(aggregation.EncodedCount) / float64(aggregation.TotalCount)
	}

	return summary, nil
}
