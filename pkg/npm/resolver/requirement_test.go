// Copyright 2025 Chainguard, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package resolver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRequirement(t *testing.T) {
	tests := []struct {
		in         string
		name       string
		constraint string
		wantErr    bool
	}{
		{in: "left-pad", name: "left-pad", constraint: ""},
		{in: "left-pad>=1.0.0", name: "left-pad", constraint: ">=1.0.0"},
		{in: "express<5.0.0", name: "express", constraint: "<5.0.0"},
		{in: "lodash^4.17.0", name: "lodash", constraint: "^4.17.0"},
		{in: "moment~2.29.0", name: "moment", constraint: "~2.29.0"},
		{in: "react=18.2.0", name: "react", constraint: "=18.2.0"},
		{in: "underscore <=1.13.0", name: "underscore", constraint: "<=1.13.0"},
		{in: "  left-pad>=1.0.0  ", name: "left-pad", constraint: ">=1.0.0"},
		{in: ">=1.0.0", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			req, err := ParseRequirement(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.name, req.Name)
			require.Equal(t, tt.constraint, req.Constraint)
		})
	}
}
