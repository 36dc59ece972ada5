package resilience

import "github.com/fenrir-shard/ledgerfolio/pkg/cqrs"

// withMetadata returns a copy of event with extra merged into its metadata.
// Both concrete event wrapper types support CloneWithOptions; anything else
// is returned unchanged since it carries no metadata map to enrich.
func withMetadata(event cqrs.EventMessage, extra map[string]interface{}) cqrs.EventMessage {
	switch typed := event.(type) {
	case *cqrs.BaseDomainEventMessage:
		clone := typed.CloneWithOptions(nil)
		for k, v := range extra {
			clone.AddMetadata(k, v)
		}
		return clone
	case *cqrs.BaseEventMessage:
		clone := typed.CloneWithOptions(nil)
		for k, v := range extra {
			clone.AddMetadata(k, v)
		}
		return clone
	default:
		return event
	}
}

func convertToInt(value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, ErrConfigInvalid("cannot convert retry metadata to int")
	}
}

func copyInt64Map(original map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(original))
	for key, value := range original {
		out[key] = value
	}
	return out
}
