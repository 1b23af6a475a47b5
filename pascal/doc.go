// Package pascal generates Free Pascal bindings for a component world.
//
// A Generator is driven by bindgen.Generate and produces three files per
// world: a unit, a declarations include and an implementation include.
// Imported functions become Pascal adapters over raw wasm imports; exported
// functions are declared external and called from generated wasm exports.
// Every conversion between Pascal values and core wasm operands is rendered
// from the canonical-ABI instruction stream produced by package abi.
//
// Unless Options.NoObjectFile is set, the generator also asks
// Options.TypeEncoder for the world's component-type payload and wraps it
// in a relocatable object that the generated code keeps linked in.
package pascal
