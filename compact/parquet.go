// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package compact

import (
	"os"

	"github.com/stockparfait/errors"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

// parallelism of the Parquet encoder and decoder.
const parallelism = 4

// SummarySuffix is appended to the Parquet file name for the summary file.
const SummarySuffix = ".summary.json"

// WriteParquet saves the rows as a ZSTD-compressed Parquet file. The file is
// written under a temporary name and renamed into place when complete.
func WriteParquet(fileName string, rows []Row) error {
	tmp := fileName + ".tmp"
	fw, err := local.NewLocalFileWriter(tmp)
	if err != nil {
		return errors.Annotate(err, "failed to create '%s'", tmp)
	}
	defer os.Remove(tmp)

	pw, err := writer.NewParquetWriter(fw, new(Row), parallelism)
	if err != nil {
		fw.Close()
		return errors.Annotate(err, "failed to create Parquet writer")
	}
	pw.CompressionType = parquet.CompressionCodec_ZSTD
	for i := range rows {
		if err := pw.Write(rows[i]); err != nil {
			fw.Close()
			return errors.Annotate(err, "failed to write row %d", i)
		}
	}
	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return errors.Annotate(err, "failed to finalize '%s'", tmp)
	}
	if err := fw.Close(); err != nil {
		return errors.Annotate(err, "failed to close '%s'", tmp)
	}
	if err := os.Rename(tmp, fileName); err != nil {
		return errors.Annotate(err, "failed to rename '%s'", tmp)
	}
	return nil
}

// ReadParquet loads all the rows of a file written by WriteParquet.
func ReadParquet(fileName string) ([]Row, error) {
	fr, err := local.NewLocalFileReader(fileName)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open '%s'", fileName)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(Row), parallelism)
	if err != nil {
		return nil, errors.Annotate(err, "failed to read Parquet metadata of '%s'", fileName)
	}
	defer pr.ReadStop()

	rows := make([]Row, int(pr.GetNumRows()))
	if err := pr.Read(&rows); err != nil {
		return nil, errors.Annotate(err, "failed to read rows of '%s'", fileName)
	}
	return rows, nil
}

// Codecs lists the compression codecs of the columns in the first row group
// of a Parquet file.
func Codecs(fileName string) ([]string, error) {
	fr, err := local.NewLocalFileReader(fileName)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open '%s'", fileName)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, nil, 1)
	if err != nil {
		return nil, errors.Annotate(err, "failed to read Parquet metadata of '%s'", fileName)
	}
	defer pr.ReadStop()

	var res []string
	if len(pr.Footer.RowGroups) == 0 {
		return res, nil
	}
	for _, c := range pr.Footer.RowGroups[0].Columns {
		res = append(res, c.MetaData.Codec.String())
	}
	return res, nil
}

// Write saves the dataset as a Parquet file and its summary next to it.
func (d *Dataset) Write(fileName string) error {
	if err := WriteParquet(fileName, d.Rows); err != nil {
		return err
	}
	if err := WriteSummary(fileName+SummarySuffix, d.Summary); err != nil {
		return err
	}
	return nil
}
