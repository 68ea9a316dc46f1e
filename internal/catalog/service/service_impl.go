package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/storefront/internal/catalog/domain"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Store *config.StoreConfigHolder
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	genID *snowflake.Node
	store *config.StoreConfigHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("catalog.service"),
		repo:  p.Repo,
		genID: p.GenID,
		store: p.Store,
	}
}

func (s *Service) CreateProduct(ctx context.Context, req domain.CreateProductRequest) (*domain.ProductResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if req.PriceCents < 0 {
		return nil, domain.ErrInvalidPrice
	}
	if req.Stock < 0 {
		return nil, domain.ErrInvalidStock
	}

	categoryID, err := s.resolveCategory(ctx, req.CategoryID)
	if err != nil {
		return nil, err
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	now := time.Now().UTC()
	p := &domain.Product{
		ID:            s.genID.Generate().Int64(),
		CategoryID:    categoryID,
		Name:          name,
		Slug:          slug.Make(name),
		Description:   strings.TrimSpace(req.Description),
		ImageURL:      strings.TrimSpace(req.ImageURL),
		PriceCents:    req.PriceCents,
		Currency:      s.store.Get().Currency,
		StockQuantity: req.Stock,
		Active:        active,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.Metadata != nil {
		p.Metadata = datatypes.JSONMap(req.Metadata)
	}

	if err := s.repo.CreateProduct(ctx, s.db, p); err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Same name already taken. Suffix with the id tail to keep
			// the slug stable and unique.
			p.Slug = p.Slug + "-" + snowflake.ID(p.ID).Base36()
			if retryErr := s.repo.CreateProduct(ctx, s.db, p); retryErr != nil {
				return nil, retryErr
			}
		} else {
			return nil, err
		}
	}

	resp := s.toProductResponse(p)
	return &resp, nil
}

func (s *Service) UpdateProduct(ctx context.Context, req domain.UpdateProductRequest) (*domain.ProductResponse, error) {
	productID, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	item, err := s.repo.FindProductByID(ctx, s.db, productID.Int64())
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}

	if req.CategoryID != nil {
		categoryID, err := s.resolveCategory(ctx, req.CategoryID)
		if err != nil {
			return nil, err
		}
		item.CategoryID = categoryID
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		item.Name = name
	}
	if req.Description != nil {
		item.Description = strings.TrimSpace(*req.Description)
	}
	if req.ImageURL != nil {
		item.ImageURL = strings.TrimSpace(*req.ImageURL)
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 0 {
			return nil, domain.ErrInvalidPrice
		}
		item.PriceCents = *req.PriceCents
	}
	if req.Active != nil {
		item.Active = *req.Active
	}
	if req.Metadata != nil {
		item.Metadata = datatypes.JSONMap(req.Metadata)
	}

	item.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateProduct(ctx, s.db, item); err != nil {
		return nil, err
	}

	resp := s.toProductResponse(item)
	return &resp, nil
}

func (s *Service) SetStock(ctx context.Context, id string, stock int) (*domain.ProductResponse, error) {
	productID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	if stock < 0 {
		return nil, domain.ErrInvalidStock
	}

	ok, err := s.repo.SetStock(ctx, s.db, productID.Int64(), stock)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotFound
	}

	s.log.Info("product stock set",
		zap.String("product_id", id),
		zap.Int("stock", stock),
	)
	return s.GetProduct(ctx, id)
}

func (s *Service) ArchiveProduct(ctx context.Context, id string) (*domain.ProductResponse, error) {
	productID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	item, err := s.repo.FindProductByID(ctx, s.db, productID.Int64())
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}

	item.Active = false
	item.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateProduct(ctx, s.db, item); err != nil {
		return nil, err
	}

	resp := s.toProductResponse(item)
	return &resp, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.ProductResponse, error) {
	productID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	item, err := s.repo.FindProductByID(ctx, s.db, productID.Int64())
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}

	resp := s.toProductResponse(item)
	return &resp, nil
}

func (s *Service) GetProductBySlug(ctx context.Context, productSlug string) (*domain.ProductResponse, error) {
	productSlug = strings.TrimSpace(productSlug)
	if productSlug == "" {
		return nil, domain.ErrInvalidID
	}

	item, err := s.repo.FindProductBySlug(ctx, s.db, productSlug)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}

	resp := s.toProductResponse(item)
	return &resp, nil
}

func (s *Service) ListProducts(ctx context.Context, req domain.ListRequest) ([]domain.ProductResponse, error) {
	filter := domain.ListRequest{
		Name:       strings.TrimSpace(req.Name),
		CategoryID: req.CategoryID,
		Active:     req.Active,
		SortBy:     strings.TrimSpace(req.SortBy),
		OrderBy:    strings.TrimSpace(req.OrderBy),
	}

	items, err := s.repo.ListProducts(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.ProductResponse, 0, len(items))
	for i := range items {
		resp = append(resp, s.toProductResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CreateCategoryRequest) (*domain.CategoryResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	now := time.Now().UTC()
	c := &domain.Category{
		ID:        s.genID.Generate().Int64(),
		Name:      name,
		Slug:      slug.Make(name),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.CreateCategory(ctx, s.db, c); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateSlug
		}
		return nil, err
	}

	return &domain.CategoryResponse{
		ID:        snowflake.ID(c.ID).String(),
		Name:      c.Name,
		Slug:      c.Slug,
		CreatedAt: c.CreatedAt,
	}, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.CategoryResponse, error) {
	items, err := s.repo.ListCategories(ctx, s.db)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.CategoryResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, domain.CategoryResponse{
			ID:        snowflake.ID(item.ID).String(),
			Name:      item.Name,
			Slug:      item.Slug,
			CreatedAt: item.CreatedAt,
		})
	}
	return resp, nil
}

func (s *Service) resolveCategory(ctx context.Context, id *string) (*int64, error) {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil, nil
	}

	categoryID, err := snowflake.ParseString(strings.TrimSpace(*id))
	if err != nil {
		return nil, domain.ErrInvalidCategory
	}

	category, err := s.repo.FindCategoryByID(ctx, s.db, categoryID.Int64())
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, domain.ErrInvalidCategory
	}

	value := category.ID
	return &value, nil
}

func (s *Service) toProductResponse(p *domain.Product) domain.ProductResponse {
	resp := domain.ProductResponse{
		ID:            snowflake.ID(p.ID).String(),
		Name:          p.Name,
		Slug:          p.Slug,
		Description:   p.Description,
		ImageURL:      p.ImageURL,
		PriceCents:    p.PriceCents,
		Currency:      p.Currency,
		StockQuantity: p.StockQuantity,
		Active:        p.Active,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}

	if p.CategoryID != nil {
		categoryID := snowflake.ID(*p.CategoryID).String()
		resp.CategoryID = &categoryID
	}
	if len(p.Metadata) > 0 {
		resp.Metadata = map[string]any(p.Metadata)
	}

	return resp
}
