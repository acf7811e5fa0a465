package main

import (
	"encoding/json"
	"io"

	kingpin "github.com/alecthomas/kingpin/v2"
)

// Dump writes v to out as indented JSON.
func Dump(out io.Writer, v interface{}) {
	serialized, err := json.MarshalIndent(v, "", " ")
	kingpin.FatalIfError(err, "Can not serialize")

	serialized = append(serialized, '\n')
	_, err = out.Write(serialized)
	kingpin.FatalIfError(err, "Can not write")
}
