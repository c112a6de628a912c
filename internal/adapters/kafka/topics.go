package kafka

// Topic definitions for Kafka event streaming
const (
	// TopicRegimeChange carries one JSON regime.ChangeEvent per smoothed
	// transition, keyed by "{symbol}:{timeframe}"
	TopicRegimeChange = "market.regime_change"
)
