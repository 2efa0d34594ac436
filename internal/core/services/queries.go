// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package services

// BigQuery statements used by RunReportService. The single %s is replaced by
// the fully qualified run table name; values are always bound as named
// query parameters.
const (
	// QryFindRunById loads one exported run.
	QryFindRunById = "SELECT * FROM `%s` WHERE id = @id"

	// QryListRuns lists the most recent exports first.
	QryListRuns = "SELECT * FROM `%s` ORDER BY created_at DESC LIMIT @limit"

	// QryRunsByRating filters exports by moderation rating, for review queues.
	QryRunsByRating = "SELECT * FROM `%s` WHERE moderation_rating = @rating ORDER BY created_at DESC LIMIT @limit"
)
