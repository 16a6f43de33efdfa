// Package clients provides a static client and lead directory.
package clients

import (
	"context"
	"fmt"
	"os"

	"github.com/minerva-erp/osflow/pkg/collaborators"
	"github.com/minerva-erp/osflow/pkg/models"
	"gopkg.in/yaml.v3"
)

type directoryFile struct {
	Clients []models.Client `yaml:"clients"`
}

// Directory is an in-memory client directory, usually loaded from YAML.
type Directory struct {
	clients map[string]models.Client
}

func NewDirectory(clients ...models.Client) *Directory {
	directory := &Directory{clients: make(map[string]models.Client, len(clients))}

	for _, client := range clients {
		directory.clients[client.ID] = client
	}

	return directory
}

// LoadFile reads a file shaped as:
//
//	clients:
//	  - id: cli-1
//	    nome: Condomínio Central
//	    is_lead: true
func LoadFile(path string) (*Directory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read clients file: %w", err)
	}

	return Parse(raw)
}

func Parse(raw []byte) (*Directory, error) {
	var file directoryFile

	err := yaml.Unmarshal(raw, &file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse clients file: %w", err)
	}

	for i, client := range file.Clients {
		if client.ID == "" {
			return nil, fmt.Errorf("client at position %d has no id", i)
		}
	}

	return NewDirectory(file.Clients...), nil
}

func (d *Directory) Lookup(_ context.Context, clientID string) (*models.Client, error) {
	client, ok := d.clients[clientID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", collaborators.ErrClientNotFound, clientID)
	}

	return &client, nil
}
