// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ratelimit caps how many research runs a caller may start.
//
// Quotas are fixed windows (minute, hour, day, week) counted per caller.
// Every rule is counted on each request; the request is rejected when any
// count exceeds its limit. Counters live in memory or, to share them
// between instances, in redis.
//
// The HTTP middleware identifies callers by their token subject, falling
// back to the client address, and answers rejected requests with 429 and
// a Retry-After header.
package ratelimit
