package memory

import (
	"context"

	"smartfarm.io/farm/internal/domain"
	"smartfarm.io/farm/internal/repository"
)

type userRow struct {
	domain.User
}

type accountRow struct {
	domain.Account
	seq int64
}

func (s *Store) usernameTaken(username, exceptID string) bool {
	if username == "" {
		return false
	}
	for id, u := range s.st.users {
		if id != exceptID && u.Username == username {
			return true
		}
	}
	return false
}

func (s *Store) CreateUser(_ context.Context, u *domain.User) error {
	defer s.lock()()
	if _, ok := s.st.users[u.ID]; ok {
		return repository.ErrDuplicate
	}
	if s.usernameTaken(u.Username, "") {
		return repository.ErrDuplicate
	}
	s.st.users[u.ID] = userRow{User: *u}
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (*domain.User, error) {
	defer s.rlock()()
	row, ok := s.st.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u := row.User
	return &u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	defer s.rlock()()
	for _, row := range s.st.users {
		if username != "" && row.Username == username {
			u := row.User
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) UpdateUser(_ context.Context, u *domain.User) error {
	defer s.lock()()
	if _, ok := s.st.users[u.ID]; !ok {
		return repository.ErrNotFound
	}
	if s.usernameTaken(u.Username, u.ID) {
		return repository.ErrDuplicate
	}
	s.st.users[u.ID] = userRow{User: *u}
	return nil
}

func (s *Store) CountUsersByRole(_ context.Context, role domain.Role) (int, error) {
	defer s.rlock()()
	n := 0
	for _, u := range s.st.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateAccount(_ context.Context, a *domain.Account) error {
	defer s.lock()()
	if _, ok := s.st.users[a.UserID]; !ok {
		return repository.ErrNotFound
	}
	for _, existing := range s.st.accounts {
		if existing.Provider == a.Provider && existing.ProviderAccountID == a.ProviderAccountID {
			return repository.ErrDuplicate
		}
	}
	s.st.accounts[a.ID] = accountRow{Account: *a, seq: s.st.next()}
	return nil
}

func (s *Store) ListAccounts(_ context.Context, userID string) ([]domain.Account, error) {
	defer s.rlock()()
	rows := sortedValues(s.st.accounts,
		func(r accountRow) bool { return r.UserID == userID },
		func(a, b accountRow) bool { return a.seq < b.seq },
	)
	out := make([]domain.Account, len(rows))
	for i, r := range rows {
		out[i] = r.Account
	}
	return out, nil
}

func (s *Store) DeleteAccountsByProvider(_ context.Context, userID, provider string) (int, error) {
	defer s.lock()()
	n := 0
	for id, a := range s.st.accounts {
		if a.UserID == userID && a.Provider == provider {
			delete(s.st.accounts, id)
			n++
		}
	}
	return n, nil
}
