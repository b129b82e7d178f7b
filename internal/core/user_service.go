package core

import "context"

// UserService provides user lookups and the notification inbox.
type UserService interface {
	GetByID(ctx context.Context, userID int) (*User, error)
	// DisplayName returns the canonical label for a user.
	DisplayName(ctx context.Context, userID int) (string, error)

	Notifications(ctx context.Context, actor Actor, unreadOnly bool) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, actor Actor, notificationID int) error
}

type userService struct {
	store Store
	names DisplayNameProvider
}

// NewUserService constructs a UserService over store.
func NewUserService(store Store) UserService {
	return &userService{store: store, names: UserDisplayName{}}
}

func (s *userService) GetByID(ctx context.Context, userID int) (*User, error) {
	return s.store.GetUser(ctx, userID)
}

func (s *userService) DisplayName(ctx context.Context, userID int) (string, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return s.names.DisplayName(u), nil
}

func (s *userService) Notifications(ctx context.Context, actor Actor, unreadOnly bool) ([]Notification, error) {
	return s.store.ListNotifications(ctx, actor.UserID, unreadOnly)
}

func (s *userService) MarkNotificationRead(ctx context.Context, actor Actor, notificationID int) error {
	return s.store.MarkNotificationRead(ctx, actor.UserID, notificationID)
}
