// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package main

import "github.com/gviegas/rendergraph/cmd/rgc/cmd"

func main() {
	cmd.Execute()
}
