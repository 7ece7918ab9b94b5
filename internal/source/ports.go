package source

import (
	"fmt"
	"sort"

	bugst "go.bug.st/serial"
)

// ListPorts возвращает последовательные порты, найденные в системе.
func ListPorts() ([]string, error) {
	ports, err := bugst.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	sort.Strings(ports)
	return ports, nil
}
