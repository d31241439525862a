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

package schema

// AuthTables returns the core tables of the authentication framework:
// user, session, account and verification.
func AuthTables() []Table {
	cascade := &Reference{Model: "user", Field: IDField, OnDelete: "cascade"}
	timestamps := func(required bool) []Field {
		return []Field{
			{Name: "createdAt", Type: TypeDate, Required: required},
			{Name: "updatedAt", Type: TypeDate, Required: required},
		}
	}
	return []Table{
		{
			Key:       "user",
			ModelName: "user",
			Order:     1,
			Fields: append([]Field{
				{Name: "name", Type: TypeString, Required: true},
				{Name: "email", Type: TypeString, Required: true, Unique: true},
				{Name: "emailVerified", Type: TypeBoolean, Required: true, DefaultValue: false},
				{Name: "image", Type: TypeString},
			}, timestamps(true)...),
		},
		{
			Key:       "session",
			ModelName: "session",
			Order:     2,
			Fields: append(append([]Field{
				{Name: "expiresAt", Type: TypeDate, Required: true},
				{Name: "token", Type: TypeString, Required: true, Unique: true},
			}, timestamps(true)...),
				Field{Name: "ipAddress", Type: TypeString},
				Field{Name: "userAgent", Type: TypeString},
				Field{Name: "userId", Type: TypeString, Required: true, References: cascade},
			),
		},
		{
			Key:       "account",
			ModelName: "account",
			Order:     3,
			Fields: append([]Field{
				{Name: "accountId", Type: TypeString, Required: true},
				{Name: "providerId", Type: TypeString, Required: true},
				{Name: "userId", Type: TypeString, Required: true, References: cascade},
				{Name: "accessToken", Type: TypeString},
				{Name: "refreshToken", Type: TypeString},
				{Name: "idToken", Type: TypeString},
				{Name: "accessTokenExpiresAt", Type: TypeDate},
				{Name: "refreshTokenExpiresAt", Type: TypeDate},
				{Name: "scope", Type: TypeString},
				{Name: "password", Type: TypeString},
			}, timestamps(true)...),
		},
		{
			Key:       "verification",
			ModelName: "verification",
			Order:     4,
			Fields: append([]Field{
				{Name: "identifier", Type: TypeString, Required: true},
				{Name: "value", Type: TypeString, Required: true},
				{Name: "expiresAt", Type: TypeDate, Required: true},
			}, timestamps(false)...),
		},
	}
}
