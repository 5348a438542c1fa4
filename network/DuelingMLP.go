package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// duelingMLP implements a dueling network: an embedding layer feeds a
// stack of residual reasoning blocks, whose outputs are pooled by a
// learned attention over the blocks. The pooled representation feeds
// three heads:
//
//	            ╭─→ value head     ─→ (batch, 1)
//	pooled repr ┼─→ advantage head ─→ (batch, actions)
//	            ╰─→ auxiliary head ─→ (batch, features)
//
// Action values decompose as Q = V + (A - mean(A)), with the advantage
// centered to zero mean across actions per sample so that the value
// and advantage terms are identifiable. The auxiliary head predicts
// the next observation and is only consumed during training.
type duelingMLP struct {
	g     *G.ExprGraph
	input *G.Node

	embed      Layer
	blocks     []Layer
	valueHead  []Layer
	advHead    []Layer
	auxHead    []Layer

	numOutputs int
	numInputs  int
	batchSize  int

	// Architecture configuration, needed to clone
	blockSize  int
	headSize   int
	numBlocks  int

	learnables G.Nodes
	model      []G.ValueGrad

	prediction *G.Node
	predVal    G.Value

	auxPrediction *G.Node
	auxVal        G.Value
}

// NewDueling creates and returns a new dueling network with numBlocks
// residual blocks of blockSize units and heads with a hidden layer of
// headSize units. The graph g is populated with the network. The init
// parameter determines the weight initialization scheme.
func NewDueling(features, batch, outputs, blockSize, headSize,
	numBlocks int, g *G.ExprGraph, init G.InitWFn) (NeuralNet, error) {
	if err := validateLayerSizes(features, batch, outputs, blockSize,
		headSize); err != nil {
		return nil, fmt.Errorf("newdueling: %v", err)
	}
	if numBlocks < 1 {
		return nil, fmt.Errorf("newdueling: must have at least one "+
			"reasoning block \n\thave(%v)", numBlocks)
	}

	input := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(batch, features),
		G.WithName("input"),
		G.WithInit(G.Zeroes()),
	)

	embed := newFCLayer(g, features, blockSize, ReLU(), init, "embed")

	blocks := make([]Layer, numBlocks)
	for i := range blocks {
		name := fmt.Sprintf("block%d", i)
		blocks[i] = newFCLayer(g, blockSize, blockSize, ReLU(), init, name)
	}

	valueHead := []Layer{
		newFCLayer(g, blockSize, headSize, ReLU(), init, "valueHidden"),
		newFCLayer(g, headSize, 1, Identity(), init, "value"),
	}
	advHead := []Layer{
		newFCLayer(g, blockSize, headSize, ReLU(), init, "advantageHidden"),
		newFCLayer(g, headSize, outputs, Identity(), init, "advantage"),
	}
	auxHead := []Layer{
		newFCLayer(g, blockSize, headSize, ReLU(), init, "auxHidden"),
		newFCLayer(g, headSize, features, Identity(), init, "nextState"),
	}

	network := &duelingMLP{
		g:          g,
		input:      input,
		embed:      embed,
		blocks:     blocks,
		valueHead:  valueHead,
		advHead:    advHead,
		auxHead:    auxHead,
		numOutputs: outputs,
		numInputs:  features,
		batchSize:  batch,
		blockSize:  blockSize,
		headSize:   headSize,
		numBlocks:  numBlocks,
	}
	if err := network.fwd(input); err != nil {
		return nil, fmt.Errorf("newdueling: could not compute forward "+
			"pass: %v", err)
	}

	return network, nil
}

// fwd performs the forward pass of the duelingMLP on the input node
func (d *duelingMLP) fwd(input *G.Node) error {
	h, err := d.embed.fwd(input)
	if err != nil {
		return fmt.Errorf("fwd: embedding: %v", err)
	}

	// Residual reasoning blocks, recording each block's output for
	// attention pooling
	blockOuts := make([]*G.Node, len(d.blocks))
	for i, block := range d.blocks {
		out, err := block.fwd(h)
		if err != nil {
			return fmt.Errorf("fwd: block %v: %v", i, err)
		}
		h = G.Must(G.Add(out, h))
		blockOuts[i] = h
	}

	pooled, err := attentionPool(blockOuts, d.batchSize)
	if err != nil {
		return fmt.Errorf("fwd: %v", err)
	}

	value, err := fwdHead(d.valueHead, pooled)
	if err != nil {
		return fmt.Errorf("fwd: value head: %v", err)
	}
	advantage, err := fwdHead(d.advHead, pooled)
	if err != nil {
		return fmt.Errorf("fwd: advantage head: %v", err)
	}

	// Q = V + (A - mean(A)): center the advantage to zero mean across
	// actions, then broadcast the state value over all actions
	meanAdv := G.Must(G.Mean(advantage, 1))
	meanAdv = G.Must(G.Reshape(meanAdv, tensor.Shape{d.batchSize, 1}))
	centered := G.Must(G.BroadcastSub(advantage, meanAdv, nil, []byte{1}))
	q := G.Must(G.BroadcastAdd(centered, value, nil, []byte{1}))

	d.prediction = q
	G.Read(d.prediction, &d.predVal)

	aux, err := fwdHead(d.auxHead, pooled)
	if err != nil {
		return fmt.Errorf("fwd: auxiliary head: %v", err)
	}
	d.auxPrediction = aux
	G.Read(d.auxPrediction, &d.auxVal)

	return nil
}

// fwdHead performs the forward pass of a head's layers in sequence
func fwdHead(head []Layer, x *G.Node) (*G.Node, error) {
	var err error
	for _, layer := range head {
		if x, err = layer.fwd(x); err != nil {
			return nil, err
		}
	}
	return x, nil
}

// attentionPool combines the block outputs into a single
// representation using softmax attention over the blocks. Each block's
// attention logit is the mean of its output features per sample.
func attentionPool(blockOuts []*G.Node, batch int) (*G.Node, error) {
	if len(blockOuts) == 1 {
		return blockOuts[0], nil
	}

	scores := make([]*G.Node, len(blockOuts))
	for i, out := range blockOuts {
		score := G.Must(G.Mean(out, 1))
		scores[i] = G.Must(G.Reshape(score, tensor.Shape{batch, 1}))
	}

	logits := G.Must(G.Concat(1, scores...))
	weights, err := G.SoftMax(logits, 1)
	if err != nil {
		return nil, fmt.Errorf("attention pool: %v", err)
	}

	var pooled *G.Node
	for i, out := range blockOuts {
		weight := G.Must(G.Slice(weights, nil, G.S(i)))
		weight = G.Must(G.Reshape(weight, tensor.Shape{batch, 1}))
		term := G.Must(G.BroadcastHadamardProd(out, weight, nil, []byte{1}))

		if pooled == nil {
			pooled = term
		} else {
			pooled = G.Must(G.Add(pooled, term))
		}
	}

	return pooled, nil
}

// Graph returns the computational graph of the duelingMLP
func (d *duelingMLP) Graph() *G.ExprGraph {
	return d.g
}

// Clone clones a duelingMLP
func (d *duelingMLP) Clone() (NeuralNet, error) {
	return d.CloneWithBatch(d.batchSize)
}

// CloneWithBatch clones a duelingMLP with a new input batch size into
// a fresh computational graph. The clone owns an independent copy of
// the weights: the two networks never alias.
func (d *duelingMLP) CloneWithBatch(batchSize int) (NeuralNet, error) {
	g := G.NewGraph()
	clone, err := NewDueling(d.numInputs, batchSize, d.numOutputs,
		d.blockSize, d.headSize, d.numBlocks, g, G.Zeroes())
	if err != nil {
		return nil, fmt.Errorf("clonewithbatch: %v", err)
	}

	if err := clone.Set(d); err != nil {
		return nil, fmt.Errorf("clonewithbatch: could not copy "+
			"weights: %v", err)
	}

	return clone, nil
}

// BatchSize returns the batch size of inputs to the network
func (d *duelingMLP) BatchSize() int {
	return d.batchSize
}

// Features returns the number of features in a single observation
// vector that the network takes as input
func (d *duelingMLP) Features() int {
	return d.numInputs
}

// Outputs returns the number of action values predicted by the network
func (d *duelingMLP) Outputs() int {
	return d.numOutputs
}

// SetInput sets the value of the input node before running the forward
// pass
func (d *duelingMLP) SetInput(input []float64) error {
	if len(input) != d.numInputs*d.batchSize {
		return fmt.Errorf("setinput: invalid number of inputs\n\twant(%v)"+
			"\n\thave(%v)", d.numInputs*d.batchSize, len(input))
	}
	inputTensor := tensor.New(
		tensor.WithBacking(input),
		tensor.WithShape(d.input.Shape()...),
	)
	return G.Let(d.input, inputTensor)
}

// Set sets the weights of the duelingMLP to be a full, shared-nothing
// copy of the weights of another duelingMLP
func (d *duelingMLP) Set(source NeuralNet) error {
	sourceNodes := source.Learnables()
	nodes := d.Learnables()
	if len(sourceNodes) != len(nodes) {
		return fmt.Errorf("set: mismatched number of learnables"+
			"\n\twant(%v)\n\thave(%v)", len(nodes), len(sourceNodes))
	}

	for i, destLearnable := range nodes {
		sourceLearnable := sourceNodes[i].Clone()
		err := G.Let(destLearnable, sourceLearnable.(*G.Node).Value())
		if err != nil {
			return err
		}
	}
	return nil
}

// Polyak sets the weights of the duelingMLP to be a polyak average
// between its existing weights and the weights of another duelingMLP
func (d *duelingMLP) Polyak(source NeuralNet, tau float64) error {
	sourceNodes := source.Learnables()
	nodes := d.Learnables()
	for i := range nodes {
		weights := nodes[i].Value().(*tensor.Dense)
		sourceWeights := sourceNodes[i].Value().(*tensor.Dense)

		weights, err := weights.MulScalar(1-tau, true)
		if err != nil {
			return err
		}

		sourceWeights, err = sourceWeights.MulScalar(tau, true)
		if err != nil {
			return err
		}

		newWeights, err := weights.Add(sourceWeights)
		if err != nil {
			return err
		}

		if err := G.Let(nodes[i], newWeights); err != nil {
			return err
		}
	}
	return nil
}

// Learnables returns the learnable nodes in a duelingMLP in a
// deterministic order shared by all clones
func (d *duelingMLP) Learnables() G.Nodes {
	if d.learnables == nil {
		d.learnables = d.computeLearnables()
	}
	return d.learnables
}

func (d *duelingMLP) computeLearnables() G.Nodes {
	layers := []Layer{d.embed}
	layers = append(layers, d.blocks...)
	layers = append(layers, d.valueHead...)
	layers = append(layers, d.advHead...)
	layers = append(layers, d.auxHead...)

	learnables := make(G.Nodes, 0, 2*len(layers))
	for _, layer := range layers {
		learnables = append(learnables, layer.Weights())
		if bias := layer.Bias(); bias != nil {
			learnables = append(learnables, bias)
		}
	}
	return learnables
}

// Model returns the learnable nodes with their gradients
func (d *duelingMLP) Model() []G.ValueGrad {
	if d.model == nil {
		d.model = d.computeModel()
	}
	return d.model
}

func (d *duelingMLP) computeModel() []G.ValueGrad {
	model := make([]G.ValueGrad, 0, len(d.Learnables()))
	for _, node := range d.Learnables() {
		model = append(model, node)
	}
	return model
}

// Output returns the output of the duelingMLP after the last run of
// its computational graph
func (d *duelingMLP) Output() []G.Value {
	return []G.Value{d.predVal}
}

// Prediction returns the node of the computational graph that stores
// the predicted action values
func (d *duelingMLP) Prediction() *G.Node {
	return d.prediction
}

// AuxPrediction returns the node of the computational graph that
// stores the predicted next observation
func (d *duelingMLP) AuxPrediction() *G.Node {
	return d.auxPrediction
}

// AuxOutput returns the value of the auxiliary prediction after the
// last run of the computational graph
func (d *duelingMLP) AuxOutput() G.Value {
	return d.auxVal
}
