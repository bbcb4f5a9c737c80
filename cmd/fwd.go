/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io/ioutil"
	"os"

	"gopkg.in/yaml.v3"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/geonum/godcr/maps"
	"github.com/geonum/godcr/mesh"
	"github.com/geonum/godcr/resistivity"
	"github.com/geonum/godcr/solver"
	"github.com/geonum/godcr/survey"
)

type ModelFwd struct {
	InputFile   string
	StoreJ      bool
	Miniaturize bool
	Profile     bool
	Verbose     bool
}

type SourceParameters struct {
	A         []float64            `yaml:"A"`
	B         []float64            `yaml:"B"`
	Current   float64              `yaml:"Current"`
	Receivers []ReceiverParameters `yaml:"Receivers"`
}

type ReceiverParameters struct {
	M [][]float64 `yaml:"M"`
	N [][]float64 `yaml:"N"`
}

type InputParameters struct {
	Title       string             `yaml:"Title"`
	Formulation string             `yaml:"Formulation"` // CellCentered or Nodal
	BC          string             `yaml:"BC"`          // Dirichlet, Neumann or Mixed
	Mapping     string             `yaml:"Mapping"`     // Identity or Exp
	SolverType  string             `yaml:"Solver"`      // LU or CG
	Hx          []float64          `yaml:"Hx"`
	Hy          []float64          `yaml:"Hy"`
	Hz          []float64          `yaml:"Hz"`
	X0          []float64          `yaml:"X0"`
	Model       []float64          `yaml:"Model"`
	Sources     []SourceParameters `yaml:"Sources"`
}

func (ip *InputParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, ip)
}

func (ip *InputParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("[%s]\t\t= Formulation\n", ip.Formulation)
	fmt.Printf("[%s]\t\t= Boundary Condition\n", ip.BC)
	fmt.Printf("[%d x %d x %d]\t= Mesh cells\n", len(ip.Hx), len(ip.Hy), len(ip.Hz))
	fmt.Printf("[%d]\t\t= Sources\n", len(ip.Sources))
}

// fwdCmd represents the fwd command
var fwdCmd = &cobra.Command{
	Use:   "fwd",
	Short: "Forward model a DC resistivity survey described by a YAML input file",
	Long: `Forward model a DC resistivity survey: assemble the finite volume
operator for the conductivity model in the input file, solve for all
source potentials and print the predicted electrode data.`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err error
			mf  = &ModelFwd{}
		)
		if mf.InputFile, err = cmd.Flags().GetString("inputFile"); err != nil {
			panic(err)
		}
		mf.StoreJ, _ = cmd.Flags().GetBool("storeJ")
		mf.Miniaturize, _ = cmd.Flags().GetBool("miniaturize")
		mf.Profile, _ = cmd.Flags().GetBool("profile")
		mf.Verbose, _ = cmd.Flags().GetBool("verbose")
		ip := processFwdInput(mf)
		RunFwd(mf, ip)
	},
}

func processFwdInput(mf *ModelFwd) (ip *InputParameters) {
	if len(mf.InputFile) == 0 {
		err := fmt.Errorf("must supply an input file (-I, --inputFile) in YAML format")
		fmt.Printf("error: %s\n", err.Error())
		exampleFile := `
########################################
Title: "Halfspace pole-dipole"
Formulation: CellCentered
BC: Dirichlet
Hx: [1, 1, 1, 1, 1]
Hy: [1, 1, 1, 1, 1]
Hz: [1, 1, 1, 1, 1]
Model: [0.01, 0.01, ...]   # one conductivity per cell
Sources:
  - A: [1.5, 2.5, 4.5]
    Current: 1
    Receivers:
      - M: [[2.5, 2.5, 4.5]]
        N: [[3.5, 2.5, 4.5]]
########################################
`
		fmt.Printf("Example File:%s\n", exampleFile)
		os.Exit(1)
	}
	var data []byte
	var err error
	if data, err = ioutil.ReadFile(mf.InputFile); err != nil {
		panic(err)
	}
	ip = &InputParameters{}
	if err = ip.Parse(data); err != nil {
		panic(err)
	}
	return
}

func init() {
	rootCmd.AddCommand(fwdCmd)
	fwdCmd.Flags().StringP("inputFile", "I", "", "YAML file describing mesh, model and survey")
	fwdCmd.Flags().Bool("storeJ", false, "materialize and cache the dense sensitivity matrix")
	fwdCmd.Flags().Bool("miniaturize", false, "deduplicate redundant pole evaluations across dipole sources")
	fwdCmd.Flags().Bool("profile", false, "write a CPU profile for the run")
	fwdCmd.Flags().BoolP("verbose", "v", false, "print assembly and solver banners")
}

func RunFwd(mf *ModelFwd, ip *InputParameters) {
	if mf.Profile {
		defer profile.Start(profile.CPUProfile).Stop()
	}
	if mf.Verbose {
		ip.Print()
	}

	var x0 [3]float64
	copy(x0[:], ip.X0)
	msh, err := mesh.NewTensorMesh(ip.Hx, ip.Hy, ip.Hz, x0)
	if err != nil {
		fmt.Printf("error: %s\n", err)
		os.Exit(1)
	}

	var sources []survey.Source
	for _, sp := range ip.Sources {
		var rxs []survey.Receiver
		for _, rp := range sp.Receivers {
			if len(rp.N) != 0 {
				rx, rxErr := survey.NewDipoleRx(rp.M, rp.N)
				if rxErr != nil {
					fmt.Printf("error: %s\n", rxErr)
					os.Exit(1)
				}
				rxs = append(rxs, rx)
			} else {
				rxs = append(rxs, survey.NewPoleRx(rp.M))
			}
		}
		current := sp.Current
		if current == 0 {
			current = 1
		}
		if len(sp.B) != 0 {
			sources = append(sources, survey.NewDipoleSrc(rxs, sp.A, sp.B, current))
		} else {
			sources = append(sources, survey.NewPoleSrc(rxs, sp.A, current))
		}
	}

	cfg := resistivity.Config{
		Mesh:        msh,
		Survey:      survey.NewSurvey(sources),
		BC:          resistivity.BCType(ip.BC),
		StoreJ:      mf.StoreJ,
		Miniaturize: mf.Miniaturize,
		Verbose:     mf.Verbose,
	}
	if ip.Mapping == "Exp" {
		cfg.Mapping = maps.ExpMap{}
	}
	if ip.SolverType == "CG" {
		cfg.Solver = solver.CG{}
	}

	var sim *resistivity.Simulation
	if ip.Formulation == "Nodal" {
		cfg.BC = ""
		sim, err = resistivity.NewNodal(cfg)
	} else {
		sim, err = resistivity.NewCellCentered(cfg)
	}
	if err != nil {
		fmt.Printf("error: %s\n", err)
		os.Exit(1)
	}

	data, err := sim.DPred(ip.Model, nil)
	if err != nil {
		fmt.Printf("error: %s\n", err)
		os.Exit(1)
	}
	for i, d := range data {
		fmt.Printf("%6d  %18.10e\n", i, d)
	}
}
