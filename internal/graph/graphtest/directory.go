// Package graphtest provides an in-memory directory with the same lookups
// as graph.Client.
package graphtest

import (
	"context"
	"sort"
	"strings"
	"sync"

	"timesheet/internal/graph"

	"github.com/google/uuid"
)

type Directory struct {
	mu       sync.Mutex
	users    map[uuid.UUID]graph.User
	managers map[uuid.UUID]uuid.UUID
	// Err is returned by every lookup when set
	Err error
}

func New() *Directory {
	return &Directory{users: map[uuid.UUID]graph.User{}, managers: map[uuid.UUID]uuid.UUID{}}
}

// AddUser registers a user and returns it.
func (d *Directory) AddUser(name string) graph.User {
	d.mu.Lock()
	defer d.mu.Unlock()
	u := graph.User{
		ID:                uuid.New(),
		DisplayName:       name,
		UserPrincipalName: strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
	}
	d.users[u.ID] = u
	return u
}

// SetManager makes manager the manager of every given report.
func (d *Directory) SetManager(manager uuid.UUID, reports ...uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range reports {
		d.managers[r] = manager
	}
}

func (d *Directory) GetUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]graph.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	out := make(map[uuid.UUID]graph.User, len(ids))
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

// GetDirectReports returns reports ordered by display name.
func (d *Directory) GetDirectReports(ctx context.Context, managerID uuid.UUID, search string) ([]graph.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	search = strings.ToLower(search)
	var out []graph.User
	for report, manager := range d.managers {
		if manager != managerID {
			continue
		}
		u := d.users[report]
		if search != "" &&
			!strings.Contains(strings.ToLower(u.DisplayName), search) &&
			!strings.Contains(strings.ToLower(u.UserPrincipalName), search) {
			continue
		}
		out = append(out, u)
	}
	sortUsers(out)
	return out, nil
}

func (d *Directory) GetManager(ctx context.Context, userID uuid.UUID) (*graph.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	manager, ok := d.managers[userID]
	if !ok {
		return nil, nil
	}
	u := d.users[manager]
	return &u, nil
}

func (d *Directory) GetManagers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]graph.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	out := make(map[uuid.UUID]graph.User, len(ids))
	for _, id := range ids {
		if manager, ok := d.managers[id]; ok {
			out[id] = d.users[manager]
		}
	}
	return out, nil
}

func sortUsers(users []graph.User) {
	sort.Slice(users, func(i, j int) bool { return users[i].DisplayName < users[j].DisplayName })
}
