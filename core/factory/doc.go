// Package factory holds the generic registry that builds pluggable modules
// (audit stores, metrics sinks) from configuration. A module is selected by
// a type string and configured by a raw settings map that the factory decodes
// into its own struct:
//
//	reg := factory.NewRegistry[audit.Store]()
//	reg.Register("jsonl", func(conf map[string]any) (audit.Store, error) {
//	    var c struct{ Path string `json:"path"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return audit.NewJSONLStore(c.Path)
//	})
//	st, err := reg.Create(factory.ModuleConfig{Type: "jsonl", Conf: map[string]any{"path": "allocation_logs.jsonl"}})
package factory
