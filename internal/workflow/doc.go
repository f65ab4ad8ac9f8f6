// Package workflow models node-graph workflow descriptions and compiles
// them into the execution form expected by the remote engine.
//
// A workflow arrives in one of two shapes. The "visual" form is what a
// graph editor saves: a node list with positional widget values plus a link
// table wiring node outputs to node inputs. The "execution" form is what
// the engine consumes: a map of node id to class type and named inputs,
// where an input is either a literal value or a [producerID, outputIndex]
// reference. Load tags the parsed document with its form explicitly so that
// downstream code never has to re-infer it.
//
// Loosely typed values (widget slots, input literals) are carried as
// cty.Value so that strings, numbers, bools, lists and objects survive a
// round trip through JSON without lossy conversion.
package workflow
