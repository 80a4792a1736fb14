// Package service реализует бизнес-логику маркетплейса.
package service

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmeshcher/marketplace-system/internal/model"
	"github.com/mmeshcher/marketplace-system/internal/repository"
	"github.com/mmeshcher/marketplace-system/internal/validation"
)

// ErrInvalidCredentials возвращается, когда пара email/пароль не прошла
// проверку при входе.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSessionExpired возвращается при обращении с истёкшей сессией.
	ErrSessionExpired = errors.New("session expired")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUsersByEmail(ctx context.Context, email string) ([]model.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameTakenByOther(ctx context.Context, username, userID string) (bool, error)
	UpdateUser(ctx context.Context, u *model.User) error
	CreateProduct(ctx context.Context, p *model.Product) error
	GetProductByID(ctx context.Context, id string) (*model.Product, error)
	OwnerHasProduct(ctx context.Context, ownerEmail, productName string) (bool, error)
	UpdateProduct(ctx context.Context, p *model.Product) error
	ListUnsoldProducts(ctx context.Context) ([]model.Product, error)
	ListProductsByOwner(ctx context.Context, userID string) ([]model.Product, error)
	PurchaseProduct(ctx context.Context, buyerID, productID string) error
	CreateSession(ctx context.Context, s *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Service содержит бизнес-логику маркетплейса.
type Service struct {
	repo Repository
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// hashCredential формирует строку хранения пароля: соль и hex от
// sha512(пароль+соль), разделённые двоеточием.
func hashCredential(password, salt string) string {
	sum := sha512.Sum512([]byte(password + salt))
	return salt + ":" + hex.EncodeToString(sum[:])
}

// verifyCredential извлекает соль из хранимой строки и сверяет пароль.
func verifyCredential(stored, password string) bool {
	salt, _, ok := strings.Cut(stored, ":")
	if !ok {
		return false
	}
	return stored == hashCredential(password, salt)
}

// Register регистрирует нового пользователя с начальным балансом и пустыми
// адресом доставки и почтовым индексом.
func (s *Service) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}

	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", repository.ErrUserExists, email)
	}

	if err := validation.ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, err
	}

	salt := uuid.NewString()
	user := &model.User{
		ID:              uuid.NewString(),
		Username:        username,
		Email:           email,
		Password:        hashCredential(password, salt),
		Balance:         model.InitialBalance,
		ShippingAddress: "",
		PostalCode:      "",
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// Login проверяет учётные данные и при успехе создаёт сессию со сроком
// действия один год. Синтаксические проверки email и пароля выполняются до
// обращения к хранилищу.
func (s *Service) Login(ctx context.Context, email, password, ip string) (*model.Session, error) {
	if validation.ValidateEmail(email) != nil || validation.ValidatePassword(password) != nil {
		return nil, ErrInvalidCredentials
	}

	users, err := s.repo.GetUsersByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	var user *model.User
	for i := range users {
		if verifyCredential(users[i].Password, password) {
			user = &users[i]
			break
		}
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	session := &model.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		IPAddress: ip,
		// Сессия истекает через год, в полночь того же календарного дня.
		Expiry: time.Date(now.Year()+1, now.Month(), now.Day(), 0, 0, 0, 0, now.Location()),
	}

	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	return session, nil
}

// Logout удаляет сессию пользователя.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.repo.DeleteSession(ctx, sessionID)
}

// ValidateSession возвращает идентификатор пользователя действующей сессии.
// Истёкшая сессия попутно удаляется из хранилища.
func (s *Service) ValidateSession(ctx context.Context, sessionID string) (string, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if session.Expired(time.Now()) {
		_ = s.repo.DeleteSession(ctx, sessionID)
		return "", ErrSessionExpired
	}
	return session.UserID, nil
}

// GetUser возвращает пользователя по идентификатору.
func (s *Service) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// CreateProductParams — параметры создания товара. Нулевая дата изменения
// означает текущее время сервера.
type CreateProductParams struct {
	ProductName      string
	Description      string
	Price            float64
	OwnerEmail       string
	LastModifiedDate time.Time
}

// CreateProduct проверяет параметры и создаёт новый товар владельца.
func (s *Service) CreateProduct(ctx context.Context, params CreateProductParams) (*model.Product, error) {
	if params.LastModifiedDate.IsZero() {
		params.LastModifiedDate = time.Now()
	}

	if err := validation.ValidateProductParams(validation.ProductParams{
		ProductName:      params.ProductName,
		Description:      params.Description,
		Price:            params.Price,
		LastModifiedDate: params.LastModifiedDate,
		OwnerEmail:       params.OwnerEmail,
	}); err != nil {
		return nil, err
	}

	owners, err := s.repo.GetUsersByEmail(ctx, params.OwnerEmail)
	if err != nil {
		return nil, err
	}
	if len(owners) == 0 {
		return nil, fmt.Errorf("%w: owner does not exist %s",
			validation.ErrInvalidParameter, params.OwnerEmail)
	}

	taken, err := s.repo.OwnerHasProduct(ctx, params.OwnerEmail, params.ProductName)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: %s", repository.ErrProductExists, params.ProductName)
	}

	product := &model.Product{
		ID:               uuid.NewString(),
		ProductName:      params.ProductName,
		UserID:           owners[0].ID,
		OwnerEmail:       params.OwnerEmail,
		Price:            params.Price,
		Description:      params.Description,
		LastModifiedDate: params.LastModifiedDate,
		Sold:             false,
	}

	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return nil, err
	}

	return product, nil
}

// GetProduct возвращает товар по идентификатору.
func (s *Service) GetProduct(ctx context.Context, productID string) (*model.Product, error) {
	return s.repo.GetProductByID(ctx, productID)
}

// UpdateProduct применяет патч к товару. Название и описание заменяются,
// цена принимается только при строгом увеличении, дата изменения всегда
// сбрасывается на текущее время. Владелец, email владельца и идентификатор
// неизменяемы.
func (s *Service) UpdateProduct(ctx context.Context, productID string, patch model.ProductPatch) error {
	product, err := s.repo.GetProductByID(ctx, productID)
	if err != nil {
		return err
	}

	now := time.Now()

	candidateName := product.ProductName
	if patch.ProductName != nil {
		candidateName = *patch.ProductName
	}
	candidateDescription := product.Description
	if patch.Description != nil {
		candidateDescription = *patch.Description
	}
	candidatePrice := product.Price
	if patch.Price != nil {
		candidatePrice = *patch.Price
	}

	// Дата в составной проверке — текущее значение товара: сама дата
	// изменения через патч не передаётся и выставляется ниже.
	if err := validation.ValidateProductParams(validation.ProductParams{
		ProductName:      candidateName,
		Description:      candidateDescription,
		Price:            candidatePrice,
		LastModifiedDate: product.LastModifiedDate,
		OwnerEmail:       product.OwnerEmail,
	}); err != nil {
		return err
	}

	// Проверка дубликата нужна только при фактическом переименовании:
	// совпадающее с текущим название — не дубликат.
	if candidateName != product.ProductName {
		taken, err := s.repo.OwnerHasProduct(ctx, product.OwnerEmail, candidateName)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: %s", repository.ErrProductExists, candidateName)
		}
	}

	if patch.Price != nil && *patch.Price > product.Price {
		product.Price = *patch.Price
	}
	if patch.ProductName != nil {
		product.ProductName = *patch.ProductName
	}
	if patch.Description != nil {
		product.Description = *patch.Description
	}
	product.LastModifiedDate = now

	return s.repo.UpdateProduct(ctx, product)
}

// UpdateUser применяет патч к профилю пользователя. Изменяемы только имя,
// адрес доставки и почтовый индекс.
func (s *Service) UpdateUser(ctx context.Context, userID string, patch model.UserPatch) error {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if patch.Username != nil {
		if err := validation.ValidateUsername(*patch.Username); err != nil {
			return err
		}
		taken, err := s.repo.UsernameTakenByOther(ctx, *patch.Username, userID)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: %s", repository.ErrUsernameTaken, *patch.Username)
		}
		user.Username = *patch.Username
	}

	if patch.ShippingAddress != nil {
		if err := validation.ValidateShippingAddress(*patch.ShippingAddress); err != nil {
			return err
		}
		user.ShippingAddress = *patch.ShippingAddress
	}

	if patch.PostalCode != nil {
		if err := validation.ValidatePostalCode(*patch.PostalCode); err != nil {
			return err
		}
		user.PostalCode = *patch.PostalCode
	}

	return s.repo.UpdateUser(ctx, user)
}

// PurchaseProduct выполняет покупку товара покупателем. Проверки и перевод
// средств выполняются хранилищем в одной транзакции.
func (s *Service) PurchaseProduct(ctx context.Context, buyerID, productID string) error {
	return s.repo.PurchaseProduct(ctx, buyerID, productID)
}

// ListProducts возвращает все непроданные товары.
func (s *Service) ListProducts(ctx context.Context) ([]model.Product, error) {
	return s.repo.ListUnsoldProducts(ctx)
}

// ListProductsByOwner возвращает товары указанного пользователя.
func (s *Service) ListProductsByOwner(ctx context.Context, userID string) ([]model.Product, error) {
	return s.repo.ListProductsByOwner(ctx, userID)
}

// StartSessionCleanup запускает фоновый процесс удаления истёкших сессий.
func (s *Service) StartSessionCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, _ = s.repo.DeleteExpiredSessions(ctx, time.Now())
			}
		}
	}()
}
