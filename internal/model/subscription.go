// internal/model/subscription.go
package model

import "time"

type Trigger struct {
	TriggerType  string    `json:"triggerType"`
	SubscribedAt time.Time `json:"subscribedAt"`
}

type Subscription struct {
	ResourceType string    `json:"resourceType"`
	Triggers     []Trigger `json:"triggers"`
}

// HasTrigger reports whether triggerType is registered for this resource type.
func (s Subscription) HasTrigger(triggerType string) bool {
	for _, t := range s.Triggers {
		if t.TriggerType == triggerType {
			return true
		}
	}
	return false
}

func (s Subscription) TriggerTypes() []string {
	out := make([]string, 0, len(s.Triggers))
	for _, t := range s.Triggers {
		out = append(out, t.TriggerType)
	}
	return out
}

// SubscriptionRegistry mirrors per channel which resource/trigger pairs are active.
// Within a channel resourceType is unique; within a resource triggerType is unique.
type SubscriptionRegistry struct {
	Channels map[Channel][]Subscription `json:"channels"`
}

func NewSubscriptionRegistry() *SubscriptionRegistry {
	return &SubscriptionRegistry{Channels: map[Channel][]Subscription{}}
}

// Find returns the subscription for resourceType on ch.
func (r *SubscriptionRegistry) Find(ch Channel, resourceType string) (Subscription, bool) {
	if r == nil {
		return Subscription{}, false
	}
	for _, s := range r.Channels[ch] {
		if s.ResourceType == resourceType {
			return s, true
		}
	}
	return Subscription{}, false
}

// IsSubscribed reports whether ch listens for triggerType on resourceType.
func (r *SubscriptionRegistry) IsSubscribed(ch Channel, resourceType, triggerType string) bool {
	s, ok := r.Find(ch, resourceType)
	return ok && s.HasTrigger(triggerType)
}

// Add registers the trigger and reports whether the registry changed.
func (r *SubscriptionRegistry) Add(ch Channel, resourceType, triggerType string, at time.Time) bool {
	if r.Channels == nil {
		r.Channels = map[Channel][]Subscription{}
	}
	subs := r.Channels[ch]
	for i := range subs {
		if subs[i].ResourceType != resourceType {
			continue
		}
		if subs[i].HasTrigger(triggerType) {
			return false
		}
		subs[i].Triggers = append(subs[i].Triggers, Trigger{TriggerType: triggerType, SubscribedAt: at})
		return true
	}
	r.Channels[ch] = append(subs, Subscription{
		ResourceType: resourceType,
		Triggers:     []Trigger{{TriggerType: triggerType, SubscribedAt: at}},
	})
	return true
}

// Remove drops the trigger, and the resource entry once it has no triggers left.
// It reports whether the trigger was present.
func (r *SubscriptionRegistry) Remove(ch Channel, resourceType, triggerType string) bool {
	subs := r.Channels[ch]
	for i := range subs {
		if subs[i].ResourceType != resourceType {
			continue
		}
		kept := subs[i].Triggers[:0:0]
		found := false
		for _, t := range subs[i].Triggers {
			if t.TriggerType == triggerType {
				found = true
				continue
			}
			kept = append(kept, t)
		}
		if !found {
			return false
		}
		if len(kept) == 0 {
			r.Channels[ch] = append(subs[:i:i], subs[i+1:]...)
		} else {
			subs[i].Triggers = kept
		}
		return true
	}
	return false
}

// TriggerUnion is the ordered set of trigger types for resourceType across all channels.
func (r *SubscriptionRegistry) TriggerUnion(resourceType string) []string {
	union := []string{}
	if r == nil {
		return union
	}
	seen := map[string]bool{}
	for _, ch := range Channels {
		s, ok := r.Find(ch, resourceType)
		if !ok {
			continue
		}
		for _, t := range s.Triggers {
			if !seen[t.TriggerType] {
				seen[t.TriggerType] = true
				union = append(union, t.TriggerType)
			}
		}
	}
	return union
}

// ResourceTypes lists every resource type registered on any channel.
func (r *SubscriptionRegistry) ResourceTypes() []string {
	out := []string{}
	if r == nil {
		return out
	}
	seen := map[string]bool{}
	for _, ch := range Channels {
		for _, s := range r.Channels[ch] {
			if !seen[s.ResourceType] {
				seen[s.ResourceType] = true
				out = append(out, s.ResourceType)
			}
		}
	}
	return out
}

// NativeSubscription is the platform push subscription for one resource type.
type NativeSubscription struct {
	ID           string   `json:"id,omitempty"`
	Key          string   `json:"key"`
	Version      int64    `json:"version"`
	ResourceType string   `json:"resourceType"`
	TriggerTypes []string `json:"triggerTypes"`
}

// TriggerCatalog lists the trigger types offered per resource type.
type TriggerCatalog struct {
	ResourceTypes map[string][]string `json:"resourceTypes"`
}
