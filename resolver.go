/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package authbridge

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tomoncle/authbridge/repository"
	"github.com/tomoncle/authbridge/schema"
)

// Resolver maps model names to repository handles. The mapping is built on
// first use; a failure while building it is returned by every later call.
type Resolver struct {
	provider repository.DataProvider
	tables   []schema.Table

	once  sync.Once
	repos map[string]repository.Repository
	err   error
}

// NewResolver returns a resolver over the declared tables.
func NewResolver(provider repository.DataProvider, tables []schema.Table) *Resolver {
	return &Resolver{provider: provider, tables: tables}
}

func (r *Resolver) bootstrap() {
	r.once.Do(func() {
		if r.provider == nil {
			r.err = fmt.Errorf("authbridge: data provider is nil")
			return
		}
		repos := make(map[string]repository.Repository, len(r.tables))
		for _, t := range r.tables {
			key := t.Name()
			if _, dup := repos[key]; dup {
				r.err = fmt.Errorf("authbridge: model %q declared twice", key)
				return
			}
			repo, err := r.provider.Repository(t)
			if err != nil {
				r.err = fmt.Errorf("authbridge: open repository for %q: %w", key, err)
				return
			}
			repos[key] = repo
		}
		r.repos = repos
	})
}

// Resolve returns the repository serving model.
func (r *Resolver) Resolve(model string) (repository.Repository, error) {
	r.bootstrap()
	if r.err != nil {
		return nil, r.err
	}
	repo, ok := r.repos[model]
	if !ok {
		return nil, &ModelNotFoundError{Model: model}
	}
	return repo, nil
}

// Models returns the resolvable model names, sorted.
func (r *Resolver) Models() ([]string, error) {
	r.bootstrap()
	if r.err != nil {
		return nil, r.err
	}
	names := make([]string, 0, len(r.repos))
	for name := range r.repos {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
