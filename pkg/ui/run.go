// Copyright 2023 Ewout Prangsma
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
//
// Author Ewout Prangsma
//

package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"github.com/binkynet/IrWorker/pkg/service/results"
)

// Run the live frame view until the user quits or the given context
// is canceled.
func Run(ctx context.Context, pin int, hub *results.Hub) error {
	p := tea.NewProgram(NewRoot(pin), tea.WithContext(ctx), tea.WithAltScreen())
	cancel := hub.Subscribe(func(e results.Event) error {
		p.Send(frameMsg(e))
		return nil
	})
	defer cancel()
	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil && errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return errors.Wrap(err, "UI failed")
	}
	return nil
}
