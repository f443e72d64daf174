package firecracker

import (
	"context"

	"github.com/maxdollinger/fireside/pkg/resource"
)

// applyOrder is the fixed traversal: collections first, then the metadata
// store, then the singleton resources in name order.
var applyOrder = []string{
	resource.KindDrive,
	resource.KindNetworkInterface,
	resource.KindPmem,
	resource.KindMMDS,
	resource.KindBalloon,
	resource.KindBootSource,
	resource.KindCPUConfig,
	resource.KindEntropy,
	resource.KindLogger,
	resource.KindMachineConfig,
	resource.KindMetrics,
	resource.KindMMDSConfig,
	resource.KindSerial,
	resource.KindVsock,
}

// Apply reconciles the declarative spec against the live microVM: every
// resource whose applied flag is down gets the minimum REST write for the
// current state. Failures are recorded per resource in the machine's error
// list and do not abort the pass; the failed resource's applied flag stays
// down so a later Apply retries it. With no API client (no_api) Apply is a
// no-op: configuration went via the launch config file.
func (m *Machine) Apply(ctx context.Context) error {
	if m.api == nil {
		return nil
	}

	preBoot := m.state == StateInitial || m.state == StateStarted
	for _, kind := range applyOrder {
		if slot, ok := collectionSlots[kind]; ok {
			m.applyCollection(ctx, kind, slot, preBoot)
			continue
		}
		m.applySingleton(ctx, kind, preBoot)
	}
	return nil
}

func (m *Machine) applySingleton(ctx context.Context, kind string, preBoot bool) {
	v, ok := m.singletons[kind]
	if !ok || v.Applied() {
		return
	}

	var err error
	switch {
	case kind == resource.KindMMDS:
		// The metadata store is whole-document PUT in every state.
		err = m.api.Put(ctx, v.Endpoint(), v.Body()["data"])
	case kind == resource.KindBalloon && !preBoot:
		err = m.patchBalloon(ctx, v)
	case preBoot:
		err = m.api.Put(ctx, v.Endpoint(), v.Body())
	default:
		err = m.api.Patch(ctx, v.Endpoint(), v.PatchBody())
	}

	if err != nil {
		m.recordError(kind, err)
		m.logger.Warn("apply failed", "resource", kind, "error", err)
		return
	}
	v.MarkApplied()
}

func (m *Machine) applyCollection(ctx context.Context, kind, slot string, preBoot bool) {
	members := m.collections[kind]
	for _, id := range sortedMemberIDs(members) {
		v := members[id]
		if v.Applied() {
			continue
		}

		var err error
		if preBoot {
			err = m.api.Put(ctx, v.MemberEndpoint(), v.Body())
		} else {
			err = m.api.Patch(ctx, v.MemberEndpoint(), v.PatchBody())
		}
		if err != nil {
			m.recordError(slot, err)
			m.logger.Warn("apply failed", "resource", slot, "id", id, "error", err)
			continue
		}
		v.MarkApplied()
	}
}

// patchBalloon implements the post-boot split: the polling interval goes to
// /balloon/statistics, the target size to /balloon, statistics first. The
// balloon only counts as applied once every present field went through.
func (m *Machine) patchBalloon(ctx context.Context, v *resource.Value) error {
	body := v.PatchBody()
	if interval, ok := body["stats_polling_interval_s"]; ok {
		err := m.api.Patch(ctx, resource.BalloonStatisticsEndpoint, resource.Options{
			"stats_polling_interval_s": interval,
		})
		if err != nil {
			return err
		}
	}
	if amount, ok := body["amount_mib"]; ok {
		return m.api.Patch(ctx, v.Endpoint(), resource.Options{"amount_mib": amount})
	}
	return nil
}
