// Copyright 2015 Google Inc. All Rights Reserved.
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

package reactor

// Stats is a point-in-time snapshot of a Reactor's lifecycle slab, for
// tests asserting on drain behavior (testable property 6: "reactor
// shutdown drain") and for operators who want to know how many
// operations are outstanding.
type Stats struct {
	// OpsInFlight is the total number of occupied slab slots, across all
	// states.
	OpsInFlight int

	Submitted int
	Waiting   int
	Cancelled int
	Completed int
}
