// Package network implements neural network function approximators
// using Gorgonia
package network

import (
	G "gorgonia.org/gorgonia"
)

// NeuralNet implements a neural network function approximator. A
// NeuralNet populates a gorgonia.ExprGraph; an external VM runs the
// graph. Evaluating a NeuralNet never mutates its parameters: weight
// mutation happens only through a solver stepping the Model, or
// through Set/Polyak.
type NeuralNet interface {
	Graph() *G.ExprGraph
	Clone() (NeuralNet, error)
	CloneWithBatch(int) (NeuralNet, error)
	BatchSize() int
	Features() int
	Outputs() int
	SetInput([]float64) error
	Set(NeuralNet) error
	Polyak(NeuralNet, float64) error
	Learnables() G.Nodes
	Model() []G.ValueGrad
	Output() []G.Value
	Prediction() *G.Node
}

// AuxPredictor is a NeuralNet that additionally predicts the next
// observation from its internal representation, for use as an
// auxiliary training signal. The auxiliary prediction shares the
// network's trunk and is only consumed by the learner's training
// graph.
type AuxPredictor interface {
	NeuralNet

	// AuxPrediction returns the node holding the next-observation
	// prediction
	AuxPrediction() *G.Node

	// AuxOutput returns the value of AuxPrediction after the last run
	// of the computational graph
	AuxOutput() G.Value
}
