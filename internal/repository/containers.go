// internal/repository/containers.go
package repository

import (
	"context"

	"github.com/unclebandit/notify-event/internal/model"
)

// Containers names every custom object container and fixed key the service uses.
type Containers struct {
	Channels            string
	ChannelsKey         string
	Subscriptions       string
	SubscriptionsKey    string
	Triggers            string
	TriggersKey         string
	MessageState        string
	MessageLogs         string
	NativeSubscriptions string
}

func DefaultContainers() Containers {
	return ContainersWithPrefix("notify")
}

func ContainersWithPrefix(prefix string) Containers {
	return Containers{
		Channels:            prefix + "-channels",
		ChannelsKey:         prefix + "-channels-key",
		Subscriptions:       prefix + "-subscriptions",
		SubscriptionsKey:    prefix + "-subscriptions-key",
		Triggers:            prefix + "-trigger-list",
		TriggersKey:         prefix + "-trigger-list-key",
		MessageState:        prefix + "-messageState",
		MessageLogs:         prefix + "-messagelogs",
		NativeSubscriptions: prefix + "-native-subscriptions",
	}
}

// All lists every container, used by bulk cleanup.
func (c Containers) All() []string {
	return []string{c.Channels, c.Subscriptions, c.Triggers, c.MessageState, c.MessageLogs, c.NativeSubscriptions}
}

const listPageSize = 500

// ListAll pages through a whole container.
func ListAll(ctx context.Context, store CustomObjectRepositoryInterface, container string) ([]*model.CustomObject, error) {
	all := []*model.CustomObject{}
	offset := 0
	for {
		page, err := store.List(ctx, container, offset, listPageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Results...)
		offset += len(page.Results)
		if len(page.Results) < listPageSize || offset >= page.Total {
			return all, nil
		}
	}
}

// DeleteContainer removes every object in container and returns how many were deleted.
func DeleteContainer(ctx context.Context, store CustomObjectRepositoryInterface, container string) (int, error) {
	objs, err := ListAll(ctx, store, container)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, obj := range objs {
		if err := store.Delete(ctx, container, obj.Key); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
