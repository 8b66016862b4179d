// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCountersIncrement(t *testing.T) {
	r := New()
	r.EventsProcessed.WithLabelValues("modified").Inc()
	r.GitCommits.Inc()
	r.GitPushes.WithLabelValues("ok").Inc()
	r.IgnoreLedgerSize.Set(3)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	r.handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "lucynotesd_events_processed_total")
	assert.Contains(t, body, "lucynotesd_git_commits_total 1")
}

func TestNewRegistryIsIndependent(t *testing.T) {
	a := New()
	b := New()
	a.GitCommits.Inc()
	assert.Equal(t, float64(0), testutil.ToFloat64(b.GitCommits))
	assert.Equal(t, float64(1), testutil.ToFloat64(a.GitCommits))
}
