package app

import (
	"context"
	"time"

	"shadowvest/go-backend/internal/crypto/keyenc"
	"shadowvest/go-backend/internal/registry"
)

func (s *Service) RegisterMeta(ctx context.Context, req MetaRequest) (rec registry.MetaRecord, err error) {
	started := time.Now()
	defer func() { s.finish(ctx, "meta.register", started, err) }()

	rec, err = s.registry.Register(ctx, req.Owner, req.SpendPub, req.ViewPub)
	if err != nil {
		return registry.MetaRecord{}, err
	}
	s.logInfo(ctx, "meta.register", "meta-address registered", "owner", keyenc.EncodeBase58(req.Owner[:]), "meta_id", rec.ID)
	return rec, nil
}

func (s *Service) UpdateMeta(ctx context.Context, req MetaRequest) (rec registry.MetaRecord, err error) {
	started := time.Now()
	defer func() { s.finish(ctx, "meta.update", started, err) }()

	rec, err = s.registry.Update(ctx, req.Owner, req.SpendPub, req.ViewPub)
	if err != nil {
		return registry.MetaRecord{}, err
	}
	s.logInfo(ctx, "meta.update", "meta-address rotated", "owner", keyenc.EncodeBase58(req.Owner[:]), "meta_id", rec.ID)
	return rec, nil
}

func (s *Service) DeactivateMeta(ctx context.Context, owner keyenc.KeyParam) (rec registry.MetaRecord, err error) {
	started := time.Now()
	defer func() { s.finish(ctx, "meta.deactivate", started, err) }()

	rec, err = s.registry.Deactivate(ctx, owner)
	if err != nil {
		return registry.MetaRecord{}, err
	}
	s.logInfo(ctx, "meta.deactivate", "meta-address deactivated", "owner", keyenc.EncodeBase58(owner[:]))
	return rec, nil
}

func (s *Service) GetMeta(ctx context.Context, owner keyenc.KeyParam) (rec registry.MetaRecord, err error) {
	started := time.Now()
	defer func() { s.finish(ctx, "meta.get", started, err) }()
	return s.registry.Get(ctx, owner)
}

func (s *Service) ListMeta(ctx context.Context) (recs []registry.MetaRecord, err error) {
	started := time.Now()
	defer func() { s.finish(ctx, "meta.list", started, err) }()
	return s.registry.List(ctx)
}
