// Package zones resolves delivery addresses to delivery zones. Every plan
// ends up in exactly one zone: an exact city match when one exists, the
// province-level zone otherwise, or a freshly created province zone.
package zones

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"fleetplan/internal/model"
)

type Store interface {
	GetZoneByCity(ctx context.Context, city string) (model.DeliveryZone, error)
	GetZoneByProvince(ctx context.Context, province string) (model.DeliveryZone, error)
	CreateZone(ctx context.Context, z model.DeliveryZone) (model.DeliveryZone, error)
}

type Resolver struct {
	store           Store
	defaultLeadDays int
	log             *zap.Logger
}

func NewResolver(s Store, defaultLeadDays int, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	if defaultLeadDays <= 0 {
		defaultLeadDays = 3
	}
	return &Resolver{store: s, defaultLeadDays: defaultLeadDays, log: log}
}

// Resolve returns the zone for an address, creating a province-level zone
// when neither a city nor a province match exists.
func (r *Resolver) Resolve(ctx context.Context, addr model.Address) (model.DeliveryZone, error) {
	if addr.City == "" && addr.Province == "" {
		return model.DeliveryZone{}, fmt.Errorf("resolve zone: address has no city or province")
	}
	if addr.City != "" {
		z, err := r.store.GetZoneByCity(ctx, addr.City)
		if err == nil {
			return z, nil
		}
		if !errors.Is(err, model.ErrNotFound) {
			return model.DeliveryZone{}, fmt.Errorf("resolve zone: by city %q: %w", addr.City, err)
		}
	}
	if addr.Province != "" {
		z, err := r.store.GetZoneByProvince(ctx, addr.Province)
		if err == nil {
			return z, nil
		}
		if !errors.Is(err, model.ErrNotFound) {
			return model.DeliveryZone{}, fmt.Errorf("resolve zone: by province %q: %w", addr.Province, err)
		}
	}

	province := addr.Province
	if province == "" {
		province = addr.City
	}
	z, err := r.store.CreateZone(ctx, model.DeliveryZone{
		Name:         province,
		Province:     province,
		LeadTimeDays: r.defaultLeadDays,
	})
	if err != nil {
		return model.DeliveryZone{}, fmt.Errorf("resolve zone: create %q: %w", province, err)
	}
	r.log.Info("created fallback delivery zone",
		zap.String("zoneId", z.ID),
		zap.String("province", province))
	return z, nil
}
